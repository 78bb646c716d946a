// Package workspace keeps private working copies of the files being
// uploaded, so a run never reads a file the user may still change or delete.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

var ErrUnsupportedMedia = errors.New("unsupported media type")

type Workspace struct {
	dir string
	log *logger.Logger
}

func New(dir string, log *logger.Logger) (*Workspace, error) {
	if dir == "" {
		return nil, fmt.Errorf("workspace directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Workspace{dir: dir, log: log.WithField("topic", "upload")}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// IncomingPath returns a fresh path in the workspace for a file received
// from a client, keeping the extension of filename
func (w *Workspace) IncomingPath(filename string) string {
	return filepath.Join(w.dir, fmt.Sprintf("incoming-%s%s", uuid.New().String(), strings.ToLower(filepath.Ext(filename))))
}

// LocalCopy copies src into the workspace under a name prefixed with the
// upload kind and describes the copy. Trailers must be video.
func (w *Workspace) LocalCopy(kind model.UploadKind, src, filename string) (string, model.MediaDescriptor, error) {
	if filename == "" {
		filename = filepath.Base(src)
	}

	desc, err := Describe(src, filename)
	if err != nil {
		return "", model.MediaDescriptor{}, err
	}
	if kind == model.UploadKindTrailer && desc.Type != model.MediaTypeVideo {
		return "", model.MediaDescriptor{}, fmt.Errorf("%w: trailer must be a video, got %s", ErrUnsupportedMedia, desc.ContentType)
	}

	dst := filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", kind, uuid.New().String(), strings.ToLower(filepath.Ext(filename))))
	if err := copyFile(src, dst); err != nil {
		return "", model.MediaDescriptor{}, err
	}

	w.log.Debug("working copy created", "kind", kind, "path", dst, "bytes", desc.Size)
	return dst, desc, nil
}

// Remove deletes a working copy. Paths outside the workspace are ignored.
func (w *Workspace) Remove(path string) error {
	if !w.contains(path) {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove working copy: %w", err)
	}
	return nil
}

// Sweep removes regular files older than maxAge and returns how many went
func (w *Workspace) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read workspace: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			w.log.Warn("failed to sweep file", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartJanitor sweeps the workspace on a cron schedule until the returned
// cron is stopped
func (w *Workspace) StartJanitor(schedule string, maxAge time.Duration) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		n, err := w.Sweep(maxAge)
		if err != nil {
			w.log.Error("workspace sweep failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Info("workspace swept", "removed", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}

func (w *Workspace) contains(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// Describe sniffs a file and builds the descriptor sent when requesting an
// upload URL
func Describe(path, filename string) (model.MediaDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.MediaDescriptor{}, fmt.Errorf("failed to stat media: %w", err)
	}
	if !info.Mode().IsRegular() {
		return model.MediaDescriptor{}, fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedMedia, path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return model.MediaDescriptor{}, fmt.Errorf("failed to detect media type: %w", err)
	}

	var mediaType model.MediaType
	switch {
	case strings.HasPrefix(mt.String(), "image/"):
		mediaType = model.MediaTypeImage
	case strings.HasPrefix(mt.String(), "video/"):
		mediaType = model.MediaTypeVideo
	default:
		return model.MediaDescriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mt.String())
	}

	return model.MediaDescriptor{
		Type:        mediaType,
		ContentType: mt.String(),
		Filename:    filename,
		Size:        info.Size(),
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open media: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create working copy: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy media: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy media: %w", err)
	}
	return nil
}
