package pipeline

import (
	"context"

	"github.com/realityworks/broadcast-app/internal/model"
)

// State is what a step sees when it starts
type State struct {
	Request  model.UploadRequest
	Progress model.UploadProgress
}

// Emit reports an intermediate event while a step is still running. Only
// the transfer step may emit, and only bytes_transferred.
type Emit func(model.UploadEvent)

// StepFunc performs one unit of work and returns its single event
type StepFunc func(ctx context.Context, st State, emit Emit) (model.UploadEvent, error)

// Step binds a StepFunc to the stage it produces and the progress weight it
// is worth
type Step struct {
	Stage    model.EventKind
	Weight   float64
	Transfer bool
	Run      StepFunc
}

type stepResult struct {
	event model.UploadEvent
	err   error
}
