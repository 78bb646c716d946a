package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/realityworks/broadcast-app/internal/model"
)

// PostAPI is the remote side of an upload: post records and the signed
// destinations media is sent to
type PostAPI interface {
	CreatePost(ctx context.Context) (string, error)
	GetMediaUploadURL(ctx context.Context, postID string, desc model.MediaDescriptor) (uploadURL, mediaID string, err error)
	GetTrailerUploadURL(ctx context.Context) (string, error)
	CompleteMediaUpload(ctx context.Context, postID, mediaID string) error
	CompleteTrailerUpload(ctx context.Context) error
	SetPostContent(ctx context.Context, postID string, content model.PostContent) error
	Publish(ctx context.Context, postID string) error
}

// ProgressFunc receives the bytes sent so far and the total size
type ProgressFunc func(sent, total int64)

// Transferer moves a local file to a signed destination URL
type Transferer interface {
	Transfer(ctx context.Context, srcPath, dstURL string, onProgress ProgressFunc) error
}

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRefused              = errors.New("request refused")
	ErrNotFound             = errors.New("not found")
	ErrDecoding             = errors.New("failed to decode response")
)

// APIError is a non-2xx response without a dedicated sentinel
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broadcast API error (status %d): %s", e.StatusCode, e.Body)
}

// statusError maps an HTTP status to the error callers branch on
func statusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, body)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrRefused, body)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body)
	default:
		return &APIError{StatusCode: status, Body: string(body)}
	}
}
