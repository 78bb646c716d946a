package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/realityworks/broadcast-app/internal/client"
	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/internal/pipeline"
	"github.com/realityworks/broadcast-app/internal/workspace"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

const streamBuffer = 16

// UploadService runs at most one upload per kind. Starting a new upload of
// a kind supersedes the one in progress.
type UploadService struct {
	pipelines map[model.UploadKind]*pipeline.Pipeline
	ws        *workspace.Workspace
	validate  *validator.Validate
	log       *logger.Logger

	mu      sync.Mutex
	runs    map[model.UploadKind]*run
	current map[model.UploadKind]*atomic.Pointer[model.UploadProgress]
}

// run is the handle of one pipeline execution
type run struct {
	kind     model.UploadKind
	cancel   context.CancelFunc
	detached chan struct{}
	once     sync.Once
}

// stop closes the subscriber stream and prevents further steps from
// starting. Steps already in flight finish.
func (r *run) stop() {
	r.once.Do(func() {
		close(r.detached)
		r.cancel()
	})
}

func NewUploadService(api client.PostAPI, tr client.Transferer, ws *workspace.Workspace, validate *validator.Validate, log *logger.Logger) (*UploadService, error) {
	if ws == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if validate == nil {
		validate = validator.New()
	}
	if log == nil {
		log = logger.Discard()
	}

	media, err := NewMediaPipeline(api, tr, log)
	if err != nil {
		return nil, err
	}
	trailer, err := NewTrailerPipeline(api, tr, log)
	if err != nil {
		return nil, err
	}

	current := make(map[model.UploadKind]*atomic.Pointer[model.UploadProgress], len(model.ValidUploadKinds))
	for _, k := range model.ValidUploadKinds {
		current[k] = &atomic.Pointer[model.UploadProgress]{}
	}

	return &UploadService{
		pipelines: map[model.UploadKind]*pipeline.Pipeline{
			model.UploadKindMedia:   media,
			model.UploadKindTrailer: trailer,
		},
		ws:       ws,
		validate: validate,
		log:      log.WithField("topic", "upload"),
		runs:     make(map[model.UploadKind]*run),
		current:  current,
	}, nil
}

// UploadMedia copies the media into the workspace and starts the post
// pipeline. Copy and validation errors are returned before anything runs.
func (s *UploadService) UploadMedia(ctx context.Context, media model.Media, content model.PostContent) (<-chan model.UploadProgress, error) {
	if err := s.validate.Struct(content); err != nil {
		return nil, err
	}

	path, desc, err := s.ws.LocalCopy(model.UploadKindMedia, media.Path, media.Filename)
	if err != nil {
		return nil, err
	}

	return s.start(ctx, model.UploadRequest{
		Kind:       model.UploadKindMedia,
		SourcePath: path,
		Descriptor: desc,
		Content:    &content,
	}), nil
}

// UploadTrailer copies the file into the workspace and starts the trailer
// pipeline
func (s *UploadService) UploadTrailer(ctx context.Context, localFile string) (<-chan model.UploadProgress, error) {
	path, desc, err := s.ws.LocalCopy(model.UploadKindTrailer, localFile, "")
	if err != nil {
		return nil, err
	}

	return s.start(ctx, model.UploadRequest{
		Kind:       model.UploadKindTrailer,
		SourcePath: path,
		Descriptor: desc,
	}), nil
}

// Current returns the latest snapshot published by the current (or last)
// run of kind
func (s *UploadService) Current(kind model.UploadKind) (model.UploadProgress, bool) {
	ptr, ok := s.current[kind]
	if !ok {
		return model.UploadProgress{}, false
	}
	p := ptr.Load()
	if p == nil {
		return model.UploadProgress{}, false
	}
	return *p, true
}

// Detach stops forwarding the current run of kind and reports whether there
// was one. The run starts no further steps.
func (s *UploadService) Detach(kind model.UploadKind) bool {
	s.mu.Lock()
	r := s.runs[kind]
	delete(s.runs, kind)
	s.mu.Unlock()

	if r == nil {
		return false
	}
	r.stop()
	s.log.Info("upload detached", "kind", kind)
	return true
}

func (s *UploadService) start(ctx context.Context, req model.UploadRequest) <-chan model.UploadProgress {
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{kind: req.Kind, cancel: cancel, detached: make(chan struct{})}
	snaps := make(chan model.UploadProgress, streamBuffer)
	out := make(chan model.UploadProgress, streamBuffer)

	s.mu.Lock()
	prev := s.runs[req.Kind]
	s.runs[req.Kind] = r
	s.mu.Unlock()

	if prev != nil {
		prev.stop()
		s.log.Info("upload superseded", "kind", req.Kind)
	}

	log := s.log.WithFields("kind", req.Kind, "source", req.SourcePath)
	log.Info("upload started", "bytes", req.Descriptor.Size, "content_type", req.Descriptor.ContentType)

	// the forwarder owns out and closes it as soon as the run is stopped,
	// even while a step is still in flight
	go func() {
		defer close(out)
		for {
			select {
			case snap, ok := <-snaps:
				if !ok {
					return
				}
				select {
				case out <- snap:
				case <-r.detached:
					return
				}
			case <-r.detached:
				return
			}
		}
	}()

	go func() {
		defer close(snaps)
		defer cancel()

		final, err := s.pipelines[req.Kind].Run(runCtx, req, func(snap model.UploadProgress) {
			s.publish(r, snap)

			select {
			case <-r.detached:
				return
			default:
			}
			select {
			case snaps <- snap:
			case <-r.detached:
			}
		})

		if err != nil {
			var sf *pipeline.StepFailure
			if errors.As(err, &sf) && len(sf.SideEffects()) > 0 {
				log.Warn("upload failed after remote changes", "stage", sf.Stage, "side_effects", sf.SideEffects(), "post_id", final.PostID, "error", sf.Err)
			} else {
				log.Warn("upload failed", "error", err)
			}
		}

		if rmErr := s.ws.Remove(req.SourcePath); rmErr != nil {
			log.Warn("failed to remove working copy", "error", rmErr)
		}

		s.mu.Lock()
		if s.runs[req.Kind] == r {
			delete(s.runs, req.Kind)
		}
		s.mu.Unlock()
	}()

	return out
}

// publish stores snap as the current snapshot of its kind unless the run
// has been superseded or detached
func (s *UploadService) publish(r *run, snap model.UploadProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[r.kind] != r {
		return
	}
	s.current[r.kind].Store(&snap)
}
