package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/realityworks/broadcast-app/pkg/logger"
)

// HTTPTransferer streams a file as the body of a PUT to a signed URL
type HTTPTransferer struct {
	httpClient *http.Client
	log        *logger.Logger
}

// NewHTTPTransferer creates a transferer. A zero timeout means the transfer
// is bounded only by its context.
func NewHTTPTransferer(timeout time.Duration, log *logger.Logger) *HTTPTransferer {
	if log == nil {
		log = logger.Discard()
	}
	return &HTTPTransferer{
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithField("topic", "upload"),
	}
}

func (t *HTTPTransferer) Transfer(ctx context.Context, srcPath, dstURL string, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(int64, int64) {}
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	total := info.Size()

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(srcPath); err == nil {
		contentType = mt.String()
	}

	body := &progressReader{r: f, total: total, onProgress: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dstURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = total
	if total == 0 {
		req.Body = http.NoBody
	}
	req.Header.Set("Content-Type", contentType)

	t.log.Debug("transfer started", "bytes", total, "content_type", contentType)
	onProgress(0, total)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload destination returned status %d: %s", resp.StatusCode, msg)
	}

	t.log.Debug("transfer finished", "bytes", body.sent.Load())
	return nil
}

// progressReader reports cumulative bytes read from the file
type progressReader struct {
	r          io.Reader
	sent       atomic.Int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.onProgress(p.sent.Add(int64(n)), p.total)
	}
	return n, err
}
