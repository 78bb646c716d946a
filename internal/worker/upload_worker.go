package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/internal/service"
	"github.com/realityworks/broadcast-app/internal/websocket"
	"github.com/realityworks/broadcast-app/internal/workspace"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

// Error codes sent to websocket subscribers
const (
	CodeInvalidUpload = "INVALID_UPLOAD"
	CodeUploadFailed  = "UPLOAD_FAILED"
	CodeSuperseded    = "UPLOAD_SUPERSEDED"
)

// UploadWorker processes queued uploads
type UploadWorker struct {
	uploads *service.UploadService
	jobs    *service.JobService
	ws      *workspace.Workspace
	hub     *websocket.Hub
	log     *logger.Logger
}

func NewUploadWorker(uploads *service.UploadService, jobs *service.JobService, ws *workspace.Workspace, hub *websocket.Hub, log *logger.Logger) *UploadWorker {
	if log == nil {
		log = logger.Discard()
	}
	return &UploadWorker{
		uploads: uploads,
		jobs:    jobs,
		ws:      ws,
		hub:     hub,
		log:     log.WithField("topic", "upload"),
	}
}

// ProcessTask runs one upload and mirrors its snapshots into the job record
// and onto the websocket hub
func (w *UploadWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	jobID := taskPayload.JobID
	log := w.log.WithField("job_id", jobID)

	var payload model.UploadJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.reject(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal upload payload: %w: %w", err, asynq.SkipRetry)
	}

	// the incoming file is only needed until the working copy exists
	defer func() {
		if err := w.ws.Remove(payload.Path); err != nil {
			log.Warn("failed to remove incoming file", "error", err)
		}
	}()

	log.Info("starting upload job", "kind", payload.Kind, "file", payload.Filename)

	// the run and its job record updates ignore the task deadline; only
	// worker shutdown detaches the run
	runCtx := context.WithoutCancel(ctx)
	stream, err := w.start(runCtx, &payload)
	if err != nil {
		w.reject(ctx, jobID, err.Error())
		return fmt.Errorf("upload rejected: %w: %w", err, asynq.SkipRetry)
	}
	stopWatch := context.AfterFunc(ctx, func() {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Info("worker stopping, detaching upload")
			w.uploads.Detach(payload.Kind)
		}
	})
	defer stopWatch()

	var last *model.UploadProgress
	lastPercent := -1
	var lastEvent model.EventKind
	for snap := range stream {
		snap := snap
		last = &snap
		if snap.Terminal() {
			continue
		}
		// transfer progress arrives per read; only persist visible changes
		if snap.Percent() == lastPercent && snap.LastEvent == lastEvent {
			continue
		}
		lastPercent, lastEvent = snap.Percent(), snap.LastEvent

		if err := w.jobs.UpdateProgress(runCtx, jobID, snap); err != nil {
			log.Warn("failed to update job progress", "error", err)
		}
		w.hub.BroadcastProgress(jobID, model.JobStatusRunning, snap)
	}

	switch {
	case last != nil && last.Completed:
		if err := w.jobs.CompleteJob(runCtx, jobID, *last); err != nil {
			log.Error("failed to complete job", "error", err)
		}
		w.hub.BroadcastComplete(jobID, *last)
		log.Info("upload job completed", "post_id", last.PostID)
		return nil

	case last != nil && last.Failed:
		if err := w.jobs.FailJob(runCtx, jobID, last, last.Error); err != nil {
			log.Error("failed to mark job failed", "error", err)
		}
		w.hub.BroadcastError(jobID, CodeUploadFailed, last.Error, last)
		return fmt.Errorf("upload failed at %s: %s: %w", last.FailedStage, last.Error, asynq.SkipRetry)

	default:
		// stream closed without a terminal snapshot: superseded or detached
		if err := w.jobs.SupersedeJob(runCtx, jobID, last); err != nil {
			log.Error("failed to mark job superseded", "error", err)
		}
		w.hub.BroadcastError(jobID, CodeSuperseded, "Upload was replaced or stopped before completion", last)
		log.Info("upload job superseded")
		return nil
	}
}

func (w *UploadWorker) start(ctx context.Context, payload *model.UploadJobPayload) (<-chan model.UploadProgress, error) {
	switch payload.Kind {
	case model.UploadKindMedia:
		if payload.Content == nil {
			return nil, fmt.Errorf("media upload without post content")
		}
		return w.uploads.UploadMedia(ctx, model.Media{Path: payload.Path, Filename: payload.Filename}, *payload.Content)
	case model.UploadKindTrailer:
		return w.uploads.UploadTrailer(ctx, payload.Path)
	default:
		return nil, fmt.Errorf("unknown upload kind %q", payload.Kind)
	}
}

func (w *UploadWorker) reject(ctx context.Context, jobID, msg string) {
	if err := w.jobs.FailJob(ctx, jobID, nil, msg); err != nil {
		w.log.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
	w.hub.BroadcastError(jobID, CodeInvalidUpload, msg, nil)
}
