package pipeline

import (
	"time"

	"github.com/realityworks/broadcast-app/internal/model"
)

// Weights is the progress credit table of a pipeline. Non-transfer stages
// add a fixed amount when their event arrives; the transfer stage scales
// its fraction by Transfer.
type Weights struct {
	steps    map[model.EventKind]float64
	transfer float64
}

func (w Weights) Of(kind model.EventKind) float64 { return w.steps[kind] }

func (w Weights) Transfer() float64 { return w.transfer }

// Fold applies one event to a snapshot and returns the next snapshot.
// Terminal snapshots are returned unchanged.
func Fold(prior model.UploadProgress, ev model.UploadEvent, w Weights) model.UploadProgress {
	if prior.Terminal() {
		return prior
	}

	next := prior
	switch ev.Kind {
	case model.EventPostCreated:
		next.PostID = ev.PostID
		next.StepProgress += w.Of(ev.Kind)
	case model.EventUploadURLIssued:
		next.DestinationURL = ev.DestinationURL
		next.MediaID = ev.MediaID
		next.StepProgress += w.Of(ev.Kind)
	case model.EventBytesTransferred:
		if f := clamp01(ev.Fraction); f > next.TransferFraction {
			next.TransferFraction = f
		}
	default:
		next.StepProgress += w.Of(ev.Kind)
	}

	total := clamp01(next.StepProgress + next.TransferFraction*w.transfer)
	if total < prior.TotalProgress {
		total = prior.TotalProgress
	}
	next.TotalProgress = total
	next.LastEvent = ev.Kind
	next.UpdatedAt = time.Now()
	return next
}

// Fraction converts transferred byte counts to [0,1]; an unknown or empty
// total counts as no progress.
func Fraction(sent, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return clamp01(float64(sent) / float64(total))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
