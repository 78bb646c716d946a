package pipeline

import (
	"errors"
	"fmt"

	"github.com/realityworks/broadcast-app/internal/model"
)

var (
	// ErrPreconditionMissing means a step ran without an identifier an
	// earlier step should have produced. It indicates broken sequencing.
	ErrPreconditionMissing = errors.New("precondition missing")

	// ErrCollaboratorUnavailable means the API or transferer a step needs
	// has not been configured.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	ErrInvalidWeights  = errors.New("invalid pipeline weights")
	ErrUnexpectedEvent = errors.New("unexpected event")
)

// Precondition builds an ErrPreconditionMissing naming the missing field
func Precondition(field string) error {
	return fmt.Errorf("%w: %s", ErrPreconditionMissing, field)
}

// StepFailure is the terminal error of a failed run
type StepFailure struct {
	Stage model.EventKind
	Err   error

	// stages that finished before the failure, in order
	completed []model.EventKind
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("upload step %s failed: %v", e.Stage, e.Err)
}

func (e *StepFailure) Unwrap() error { return e.Err }

// SideEffects lists the stages whose remote effects already happened when
// the run failed. Nothing is rolled back.
func (e *StepFailure) SideEffects() []model.EventKind {
	out := make([]model.EventKind, len(e.completed))
	copy(out, e.completed)
	return out
}

// TransferFailure wraps an error reported by the byte transfer
type TransferFailure struct {
	Err error
}

func (e *TransferFailure) Error() string {
	return fmt.Sprintf("transfer failed: %v", e.Err)
}

func (e *TransferFailure) Unwrap() error { return e.Err }
