package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityworks/broadcast-app/internal/model"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	mp4Bytes = append([]byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom"), make([]byte, 64)...)
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestDescribe(t *testing.T) {
	desc, err := Describe(writeFile(t, "cover.png", pngBytes), "cover.png")
	require.NoError(t, err)
	assert.Equal(t, model.MediaTypeImage, desc.Type)
	assert.Equal(t, "image/png", desc.ContentType)
	assert.Equal(t, int64(len(pngBytes)), desc.Size)

	desc, err = Describe(writeFile(t, "clip.mp4", mp4Bytes), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, model.MediaTypeVideo, desc.Type)
	assert.Equal(t, "clip.mp4", desc.Filename)

	_, err = Describe(writeFile(t, "notes.txt", []byte("just some text")), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	_, err = Describe(filepath.Join(t.TempDir(), "missing"), "missing")
	assert.Error(t, err)
}

func TestLocalCopy(t *testing.T) {
	ws, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	src := writeFile(t, "clip.MP4", mp4Bytes)
	path, desc, err := ws.LocalCopy(model.UploadKindMedia, src, "")
	require.NoError(t, err)

	assert.Equal(t, ws.Dir(), filepath.Dir(path))
	assert.Regexp(t, `^media-[0-9a-f-]{36}\.mp4$`, filepath.Base(path))
	assert.Equal(t, "clip.MP4", desc.Filename)

	copied, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, mp4Bytes, copied)

	// the copy outlives the original
	require.NoError(t, os.Remove(src))
	_, err = os.Stat(path)
	assert.NoError(t, err)

	require.NoError(t, ws.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLocalCopyTrailerMustBeVideo(t *testing.T) {
	ws, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	_, _, err = ws.LocalCopy(model.UploadKindTrailer, writeFile(t, "cover.png", pngBytes), "cover.png")
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	entries, err := os.ReadDir(ws.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveIgnoresOutsidePaths(t *testing.T) {
	ws, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	outside := writeFile(t, "keep.mp4", mp4Bytes)
	require.NoError(t, ws.Remove(outside))
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestSweep(t *testing.T) {
	ws, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	old := filepath.Join(ws.Dir(), "media-old.mp4")
	fresh := filepath.Join(ws.Dir(), "media-fresh.mp4")
	require.NoError(t, os.WriteFile(old, mp4Bytes, 0o600))
	require.NoError(t, os.WriteFile(fresh, mp4Bytes, 0o600))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	n, err := ws.Sweep(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestStartJanitorRejectsBadSchedule(t *testing.T) {
	ws, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = ws.StartJanitor("not a schedule", time.Hour)
	assert.Error(t, err)

	c, err := ws.StartJanitor("@every 1h", time.Hour)
	require.NoError(t, err)
	c.Stop()
}

func TestIncomingPath(t *testing.T) {
	ws, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	a := ws.IncomingPath("Clip.MP4")
	b := ws.IncomingPath("Clip.MP4")
	assert.NotEqual(t, a, b)
	assert.Equal(t, ws.Dir(), filepath.Dir(a))
	assert.Equal(t, ".mp4", filepath.Ext(a))
}
