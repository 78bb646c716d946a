package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

const weightTolerance = 1e-9

// Observer receives every snapshot of a run, in order
type Observer func(model.UploadProgress)

// Pipeline is a fixed, ordered list of steps. It is immutable after New and
// safe to run concurrently.
type Pipeline struct {
	steps   []Step
	weights Weights
	log     *logger.Logger
}

// New validates the step list and builds a pipeline. Weights must be
// non-negative and sum to 1.0; at most one step may be the transfer.
func New(name string, log *logger.Logger, steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: pipeline %s has no steps", ErrInvalidWeights, name)
	}
	if log == nil {
		log = logger.Discard()
	}

	for _, s := range steps {
		if s.Run == nil {
			return nil, fmt.Errorf("pipeline %s: step %s has no func", name, s.Stage)
		}
		if s.Weight < 0 || math.IsNaN(s.Weight) {
			return nil, fmt.Errorf("%w: step %s has weight %v", ErrInvalidWeights, s.Stage, s.Weight)
		}
	}

	stages := lo.Map(steps, func(s Step, _ int) model.EventKind { return s.Stage })
	if len(lo.Uniq(stages)) != len(stages) {
		return nil, fmt.Errorf("pipeline %s: duplicate stage in %v", name, stages)
	}

	if n := lo.CountBy(steps, func(s Step) bool { return s.Transfer }); n > 1 {
		return nil, fmt.Errorf("pipeline %s: %d transfer steps, want at most one", name, n)
	}

	sum := lo.SumBy(steps, func(s Step) float64 { return s.Weight })
	if math.Abs(sum-1.0) > weightTolerance {
		return nil, fmt.Errorf("%w: pipeline %s weights sum to %v", ErrInvalidWeights, name, sum)
	}

	w := Weights{steps: make(map[model.EventKind]float64, len(steps))}
	for _, s := range steps {
		if s.Transfer {
			w.transfer = s.Weight
			continue
		}
		w.steps[s.Stage] = s.Weight
	}

	return &Pipeline{
		steps:   append([]Step(nil), steps...),
		weights: w,
		log:     log.WithField("pipeline", name),
	}, nil
}

func (p *Pipeline) Weights() Weights { return p.weights }

// Stages returns the stage names in execution order
func (p *Pipeline) Stages() []model.EventKind {
	return lo.Map(p.steps, func(s Step, _ int) model.EventKind { return s.Stage })
}

// Run executes the steps in order, reporting every snapshot to observe. It
// returns the terminal snapshot and, on failure, a *StepFailure.
//
// Cancelling ctx stops the run before the next step starts. A step already
// in flight is not interrupted; collaborator calls receive a context that
// is detached from cancellation.
func (p *Pipeline) Run(ctx context.Context, req model.UploadRequest, observe Observer) (model.UploadProgress, error) {
	if observe == nil {
		observe = func(model.UploadProgress) {}
	}
	log := p.log.WithFields("kind", req.Kind, "source", req.SourcePath)

	current := model.NewUploadProgress(req.Kind, req.SourcePath)
	observe(current)

	done := make([]model.EventKind, 0, len(p.steps))
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			log.Info("upload cancelled", "stage", step.Stage)
			return p.fail(current, step.Stage, err, done, observe)
		}

		log.Debug("step started", "stage", step.Stage)
		ev, next, err := p.runStep(ctx, step, req, current, observe)
		current = next
		if err != nil {
			log.Warn("step failed", "stage", step.Stage, "error", err, "side_effects", done)
			return p.fail(current, step.Stage, err, done, observe)
		}

		current = Fold(current, ev, p.weights)
		observe(current)
		done = append(done, step.Stage)
	}

	current = current.Complete()
	observe(current)
	log.Info("upload completed", "post_id", current.PostID)
	return current, nil
}

// runStep runs one step on its own goroutine and folds its auxiliary
// events until it returns. Late emits after return are dropped.
func (p *Pipeline) runStep(ctx context.Context, step Step, req model.UploadRequest, current model.UploadProgress, observe Observer) (model.UploadEvent, model.UploadProgress, error) {
	aux := make(chan model.UploadEvent)
	stop := make(chan struct{})
	defer close(stop)

	emit := func(ev model.UploadEvent) {
		select {
		case aux <- ev:
		case <-stop:
		}
	}

	result := make(chan stepResult, 1)
	state := State{Request: req, Progress: current}
	go func() {
		ev, err := step.Run(context.WithoutCancel(ctx), state, emit)
		result <- stepResult{event: ev, err: err}
	}()

	for {
		select {
		case ev := <-aux:
			if !step.Transfer || ev.Kind != model.EventBytesTransferred {
				p.log.Warn("dropping auxiliary event", "stage", step.Stage, "event", ev.Kind)
				continue
			}
			current = Fold(current, ev, p.weights)
			observe(current)
		case r := <-result:
			if r.err != nil {
				return model.UploadEvent{}, current, r.err
			}
			if r.event.Kind != step.Stage {
				return model.UploadEvent{}, current, fmt.Errorf("%w: %s from step %s", ErrUnexpectedEvent, r.event.Kind, step.Stage)
			}
			return r.event, current, nil
		}
	}
}

func (p *Pipeline) fail(current model.UploadProgress, stage model.EventKind, cause error, done []model.EventKind, observe Observer) (model.UploadProgress, error) {
	failure := &StepFailure{
		Stage:     stage,
		Err:       cause,
		completed: append([]model.EventKind(nil), done...),
	}
	current = current.Fail(stage, cause)
	observe(current)
	return current, failure
}
