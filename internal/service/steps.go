package service

import (
	"context"

	"github.com/realityworks/broadcast-app/internal/client"
	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/internal/pipeline"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

// Progress weights. The transfer dominates because it is the only step
// whose duration grows with the file.
const (
	mediaStepWeight       = 0.05
	mediaTransferWeight   = 0.75
	trailerStepWeight     = 0.05
	trailerTransferWeight = 0.90
)

// NewMediaPipeline builds create post -> upload URL -> transfer -> finalize
// -> attach content -> publish
func NewMediaPipeline(api client.PostAPI, tr client.Transferer, log *logger.Logger) (*pipeline.Pipeline, error) {
	s := &steps{api: api, tr: tr}
	return pipeline.New(string(model.UploadKindMedia), log,
		pipeline.Step{Stage: model.EventPostCreated, Weight: mediaStepWeight, Run: s.createPost},
		pipeline.Step{Stage: model.EventUploadURLIssued, Weight: mediaStepWeight, Run: s.issueMediaURL},
		pipeline.Step{Stage: model.EventBytesTransferred, Weight: mediaTransferWeight, Transfer: true, Run: s.transfer},
		pipeline.Step{Stage: model.EventUploadFinalized, Weight: mediaStepWeight, Run: s.finalizeMedia},
		pipeline.Step{Stage: model.EventContentAttached, Weight: mediaStepWeight, Run: s.attachContent},
		pipeline.Step{Stage: model.EventPublished, Weight: mediaStepWeight, Run: s.publish},
	)
}

// NewTrailerPipeline builds upload URL -> transfer -> finalize for the
// profile trailer
func NewTrailerPipeline(api client.PostAPI, tr client.Transferer, log *logger.Logger) (*pipeline.Pipeline, error) {
	s := &steps{api: api, tr: tr}
	return pipeline.New(string(model.UploadKindTrailer), log,
		pipeline.Step{Stage: model.EventUploadURLIssued, Weight: trailerStepWeight, Run: s.issueTrailerURL},
		pipeline.Step{Stage: model.EventBytesTransferred, Weight: trailerTransferWeight, Transfer: true, Run: s.transfer},
		pipeline.Step{Stage: model.EventUploadFinalized, Weight: trailerStepWeight, Run: s.finalizeTrailer},
	)
}

// steps binds the collaborators the step funcs call
type steps struct {
	api client.PostAPI
	tr  client.Transferer
}

func (s *steps) needAPI() error {
	if s.api == nil {
		return pipeline.ErrCollaboratorUnavailable
	}
	return nil
}

func (s *steps) createPost(ctx context.Context, _ pipeline.State, _ pipeline.Emit) (model.UploadEvent, error) {
	if err := s.needAPI(); err != nil {
		return model.UploadEvent{}, err
	}
	postID, err := s.api.CreatePost(ctx)
	if err != nil {
		return model.UploadEvent{}, err
	}
	return model.PostCreated(postID), nil
}

func (s *steps) issueMediaURL(ctx context.Context, st pipeline.State, _ pipeline.Emit) (model.UploadEvent, error) {
	if err := s.needAPI(); err != nil {
		return model.UploadEvent{}, err
	}
	if st.Progress.PostID == "" {
		return model.UploadEvent{}, pipeline.Precondition("postId")
	}
	uploadURL, mediaID, err := s.api.GetMediaUploadURL(ctx, st.Progress.PostID, st.Request.Descriptor)
	if err != nil {
		return model.UploadEvent{}, err
	}
	return model.UploadURLIssued(uploadURL, mediaID), nil
}

func (s *steps) issueTrailerURL(ctx context.Context, _ pipeline.State, _ pipeline.Emit) (model.UploadEvent, error) {
	if err := s.needAPI(); err != nil {
		return model.UploadEvent{}, err
	}
	uploadURL, err := s.api.GetTrailerUploadURL(ctx)
	if err != nil {
		return model.UploadEvent{}, err
	}
	return model.UploadURLIssued(uploadURL, ""), nil
}

func (s *steps) transfer(ctx context.Context, st pipeline.State, emit pipeline.Emit) (model.UploadEvent, error) {
	if s.tr == nil {
		return model.UploadEvent{}, pipeline.ErrCollaboratorUnavailable
	}
	if st.Progress.DestinationURL == "" {
		return model.UploadEvent{}, pipeline.Precondition("destinationUrl")
	}

	err := s.tr.Transfer(ctx, st.Request.SourcePath, st.Progress.DestinationURL, func(sent, total int64) {
		emit(model.BytesTransferred(pipeline.Fraction(sent, total)))
	})
	if err != nil {
		return model.UploadEvent{}, &pipeline.TransferFailure{Err: err}
	}
	return model.BytesTransferred(1), nil
}

func (s *steps) finalizeMedia(ctx context.Context, st pipeline.State, _ pipeline.Emit) (model.UploadEvent, error) {
	if err := s.needAPI(); err != nil {
		return model.UploadEvent{}, err
	}
	if st.Progress.PostID == "" {
		return model.UploadEvent{}, pipeline.Precondition("postId")
	}
	if st.Progress.MediaID == "" {
		return model.UploadEvent{}, pipeline.Precondition("mediaId")
	}
	if err := s.api.CompleteMediaUpload(ctx, st.Progress.PostID, st.Progress.MediaID); err != nil {
		return model.UploadEvent{}, err
	}
	return model.UploadFinalized(), nil
}

func (s *steps) finalizeTrailer(ctx context.Context, _ pipeline.State, _ pipeline.Emit) (model.UploadEvent, error) {
	if err := s.needAPI(); err != nil {
		return model.UploadEvent{}, err
	}
	if err := s.api.CompleteTrailerUpload(ctx); err != nil {
		return model.UploadEvent{}, err
	}
	return model.UploadFinalized(), nil
}

func (s *steps) attachContent(ctx context.Context, st pipeline.State, _ pipeline.Emit) (model.UploadEvent, error) {
	if err := s.needAPI(); err != nil {
		return model.UploadEvent{}, err
	}
	if st.Progress.PostID == "" {
		return model.UploadEvent{}, pipeline.Precondition("postId")
	}
	if st.Request.Content == nil {
		return model.UploadEvent{}, pipeline.Precondition("content")
	}
	if err := s.api.SetPostContent(ctx, st.Progress.PostID, *st.Request.Content); err != nil {
		return model.UploadEvent{}, err
	}
	return model.ContentAttached(), nil
}

func (s *steps) publish(ctx context.Context, st pipeline.State, _ pipeline.Emit) (model.UploadEvent, error) {
	if err := s.needAPI(); err != nil {
		return model.UploadEvent{}, err
	}
	if st.Progress.PostID == "" {
		return model.UploadEvent{}, pipeline.Precondition("postId")
	}
	if err := s.api.Publish(ctx, st.Progress.PostID); err != nil {
		return model.UploadEvent{}, err
	}
	return model.Published(), nil
}
