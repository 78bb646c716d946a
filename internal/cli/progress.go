package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/realityworks/broadcast-app/internal/model"
)

var errInterrupted = errors.New("upload interrupted")

var stageLabels = map[model.EventKind]string{
	model.EventPostCreated:      "Post created",
	model.EventUploadURLIssued:  "Upload URL issued",
	model.EventBytesTransferred: "Uploading",
	model.EventUploadFinalized:  "Upload finalized",
	model.EventContentAttached:  "Content attached",
	model.EventPublished:        "Published",
}

// render draws snapshots on w until the stream closes and returns the last
// one. A failed or unfinished run is an error.
func render(w io.Writer, stream <-chan model.UploadProgress) (model.UploadProgress, error) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Preparing upload"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)

	var last model.UploadProgress
	seen := false
	for snap := range stream {
		last, seen = snap, true
		if label, ok := stageLabels[snap.LastEvent]; ok {
			bar.Describe(label)
		}
		_ = bar.Set(snap.Percent())
	}

	switch {
	case seen && last.Completed:
		_ = bar.Finish()
		return last, nil
	case seen && last.Failed:
		fmt.Fprintln(w)
		return last, fmt.Errorf("upload failed at %s: %s", last.FailedStage, last.Error)
	default:
		fmt.Fprintln(w)
		return last, errInterrupted
	}
}
