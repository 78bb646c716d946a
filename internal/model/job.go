package model

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusRunning    JobStatus = "running"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusSuperseded JobStatus = "superseded"
)

// Job is a queued upload handled by the worker
type Job struct {
	ID          string          `json:"id"`
	Kind        UploadKind      `json:"kind"`
	Status      JobStatus       `json:"status"`
	UserID      string          `json:"userId,omitempty"`
	Progress    *UploadProgress `json:"progress,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// UploadJobPayload is what the handler hands to the worker through the queue
type UploadJobPayload struct {
	Kind     UploadKind   `json:"kind"`
	Path     string       `json:"path"`
	Filename string       `json:"filename"`
	Content  *PostContent `json:"content,omitempty"`
}

// UploadStartResponse is returned when an upload is accepted
type UploadStartResponse struct {
	JobID     string     `json:"jobId"`
	Kind      UploadKind `json:"kind"`
	Status    JobStatus  `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// UploadStatusResponse is the job record as seen by the UI
type UploadStatusResponse struct {
	JobID        string          `json:"jobId"`
	Kind         UploadKind      `json:"kind"`
	Status       JobStatus       `json:"status"`
	Progress     *UploadProgress `json:"progress,omitempty"`
	ProgressText string          `json:"progressText,omitempty"`
	Error        *string         `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// UploadCurrentResponse is the latest snapshot of the current run of a kind
type UploadCurrentResponse struct {
	Kind     UploadKind     `json:"kind"`
	Percent  int            `json:"percent"`
	Text     string         `json:"text"`
	Progress UploadProgress `json:"progress"`
}

// UploadDetachResponse reports whether a run was detached
type UploadDetachResponse struct {
	Kind     UploadKind `json:"kind"`
	Detached bool       `json:"detached"`
}
