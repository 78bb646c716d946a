package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/realityworks/broadcast-app/internal/model"
)

const (
	TaskTypeUpload = "upload:process"
	QueueUploads   = "uploads"

	jobTTL = 24 * time.Hour
)

var ErrJobNotFound = errors.New("job not found")

// JobStore persists upload job records
type JobStore interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

// Enqueuer hands tasks to the worker; *asynq.Client satisfies it
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RedisJobStore keeps job records as JSON under job:{id}
type RedisJobStore struct {
	redis *redis.Client
}

func NewRedisJobStore(redisClient *redis.Client) *RedisJobStore {
	return &RedisJobStore{redis: redisClient}
}

func (s *RedisJobStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, jobTTL).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DefaultTaskTimeout bounds a queued upload when no timeout is configured.
// asynq would otherwise cut every task off after 30 minutes.
const DefaultTaskTimeout = 6 * time.Hour

// JobService queues uploads for the worker and tracks their records
type JobService struct {
	store       JobStore
	queue       Enqueuer
	taskTimeout time.Duration
}

func NewJobService(store JobStore, queue Enqueuer) *JobService {
	return &JobService{store: store, queue: queue, taskTimeout: DefaultTaskTimeout}
}

// WithTaskTimeout sets how long the worker may spend on one upload task.
// Non-positive values keep the default.
func (s *JobService) WithTaskTimeout(d time.Duration) *JobService {
	if d > 0 {
		s.taskTimeout = d
	}
	return s
}

// StartUpload records a queued job and enqueues it. Upload tasks are never
// retried: a retry would create a second post.
func (s *JobService) StartUpload(ctx context.Context, userID string, payload *model.UploadJobPayload) (*model.UploadStartResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	job := &model.Job{
		ID:        jobID,
		Kind:      payload.Kind,
		Status:    model.JobStatusQueued,
		UserID:    userID,
		CreatedAt: now,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newUploadTask(jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.queue.EnqueueContext(ctx, task,
		asynq.Queue(QueueUploads),
		asynq.MaxRetry(0),
		asynq.Timeout(s.taskTimeout),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.UploadStartResponse{
		JobID:     jobID,
		Kind:      payload.Kind,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the job record. Jobs owned by another user are reported
// as not found.
func (s *JobService) GetStatus(ctx context.Context, userID, jobID string) (*model.UploadStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != "" && userID != "" && job.UserID != userID {
		return nil, ErrJobNotFound
	}

	resp := &model.UploadStatusResponse{
		JobID:       job.ID,
		Kind:        job.Kind,
		Status:      job.Status,
		Progress:    job.Progress,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Progress != nil {
		resp.ProgressText = job.Progress.ProgressText()
	}
	return resp, nil
}

// UpdateProgress stores the latest snapshot (called by worker)
func (s *JobService) UpdateProgress(ctx context.Context, jobID string, snap model.UploadProgress) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = &snap
	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.store.Save(ctx, job)
}

// CompleteJob marks job as succeeded (called by worker)
func (s *JobService) CompleteJob(ctx context.Context, jobID string, snap model.UploadProgress) error {
	return s.finish(ctx, jobID, model.JobStatusSucceeded, &snap, "")
}

// FailJob marks job as failed (called by worker)
func (s *JobService) FailJob(ctx context.Context, jobID string, snap *model.UploadProgress, errMsg string) error {
	return s.finish(ctx, jobID, model.JobStatusFailed, snap, errMsg)
}

// SupersedeJob marks a job whose run was replaced by a newer upload of the
// same kind (called by worker)
func (s *JobService) SupersedeJob(ctx context.Context, jobID string, snap *model.UploadProgress) error {
	return s.finish(ctx, jobID, model.JobStatusSuperseded, snap, "superseded by a newer upload")
}

func (s *JobService) finish(ctx context.Context, jobID string, status model.JobStatus, snap *model.UploadProgress, errMsg string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = status
	if snap != nil {
		job.Progress = snap
	}
	if errMsg != "" {
		job.Error = &errMsg
	}
	now := time.Now()
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.CompletedAt = &now

	return s.store.Save(ctx, job)
}

func newUploadTask(jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeUpload, data), nil
}
