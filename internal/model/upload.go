package model

import (
	"fmt"
	"time"
)

// UploadKind selects which pipeline a run belongs to
type UploadKind string

const (
	UploadKindMedia   UploadKind = "media"
	UploadKindTrailer UploadKind = "trailer"
)

var ValidUploadKinds = []UploadKind{UploadKindMedia, UploadKindTrailer}

func ParseUploadKind(s string) (UploadKind, error) {
	for _, k := range ValidUploadKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown upload kind %q", s)
}

// MediaType is the coarse class of an uploaded file
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaDescriptor describes the local file to the remote API when asking
// for an upload URL
type MediaDescriptor struct {
	Type        MediaType `json:"mediaType"`
	ContentType string    `json:"contentType"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
}

// Media is a file picked by the user, before it is copied into the workspace
type Media struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// PostContent is the metadata attached to a post after its media is uploaded
type PostContent struct {
	Title   string `json:"title" validate:"required,max=120"`
	Caption string `json:"caption" validate:"max=2200"`
}

// UploadRequest is the input of one pipeline run
type UploadRequest struct {
	Kind       UploadKind
	SourcePath string
	Descriptor MediaDescriptor
	Content    *PostContent
}

// UploadProgress is an immutable snapshot of a pipeline run. New snapshots
// are produced by folding UploadEvents into the prior one.
type UploadProgress struct {
	Kind             UploadKind `json:"kind"`
	SourcePath       string     `json:"sourcePath"`
	DestinationURL   string     `json:"destinationUrl,omitempty"`
	PostID           string     `json:"postId,omitempty"`
	MediaID          string     `json:"mediaId,omitempty"`
	StepProgress     float64    `json:"stepProgress"`
	TransferFraction float64    `json:"transferFraction"`
	TotalProgress    float64    `json:"totalProgress"`
	Completed        bool       `json:"completed"`
	Failed           bool       `json:"failed"`
	FailedStage      EventKind  `json:"failedStage,omitempty"`
	Error            string     `json:"error,omitempty"`
	LastEvent        EventKind  `json:"lastEvent,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NewUploadProgress returns the NotStarted snapshot of a fresh run
func NewUploadProgress(kind UploadKind, sourcePath string) UploadProgress {
	return UploadProgress{
		Kind:       kind,
		SourcePath: sourcePath,
		UpdatedAt:  time.Now(),
	}
}

// Terminal reports whether the run has completed or failed
func (p UploadProgress) Terminal() bool {
	return p.Completed || p.Failed
}

// Complete marks a successful run. Terminal snapshots are returned unchanged.
func (p UploadProgress) Complete() UploadProgress {
	if p.Terminal() {
		return p
	}
	p.Completed = true
	p.TotalProgress = 1
	p.UpdatedAt = time.Now()
	return p
}

// Fail marks a failed run at the given stage. Terminal snapshots are
// returned unchanged.
func (p UploadProgress) Fail(stage EventKind, cause error) UploadProgress {
	if p.Terminal() {
		return p
	}
	p.Failed = true
	p.FailedStage = stage
	if cause != nil {
		p.Error = cause.Error()
	}
	p.UpdatedAt = time.Now()
	return p
}

// Percent is TotalProgress on a 0-100 integer scale
func (p UploadProgress) Percent() int {
	return int(p.TotalProgress*100 + 0.5)
}

// ProgressText is the display string shown next to a progress bar
func (p UploadProgress) ProgressText() string {
	switch {
	case p.Completed:
		return "Upload complete"
	case p.Failed:
		return "Upload failed"
	case p.LastEvent == "":
		return "Preparing upload"
	default:
		return fmt.Sprintf("Uploading %d%%", p.Percent())
	}
}
