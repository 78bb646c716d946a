package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityworks/broadcast-app/internal/auth"
	"github.com/realityworks/broadcast-app/internal/client"
	"github.com/realityworks/broadcast-app/internal/middleware"
	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/internal/service"
	"github.com/realityworks/broadcast-app/internal/workspace"
)

const testJWTSecret = "test-secret-for-handlers"

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	mp4Bytes = append([]byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom"), make([]byte, 256)...)
)

type okAPI struct{}

func (okAPI) CreatePost(context.Context) (string, error) { return "post-1", nil }
func (okAPI) GetMediaUploadURL(context.Context, string, model.MediaDescriptor) (string, string, error) {
	return "https://up.example/media", "media-1", nil
}
func (okAPI) GetTrailerUploadURL(context.Context) (string, error) { return "https://up.example/trailer", nil }
func (okAPI) CompleteMediaUpload(context.Context, string, string) error { return nil }
func (okAPI) CompleteTrailerUpload(context.Context) error { return nil }
func (okAPI) SetPostContent(context.Context, string, model.PostContent) error { return nil }
func (okAPI) Publish(context.Context, string) error { return nil }

type okTransferer struct{}

func (okTransferer) Transfer(_ context.Context, _, _ string, onProgress client.ProgressFunc) error {
	onProgress(1, 1)
	return nil
}

type memoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]model.Job
}

func (m *memoryJobStore) Save(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobStore) Get(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	return &job, nil
}

type captureQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *captureQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type testApp struct {
	app     *fiber.App
	ws      *workspace.Workspace
	queue   *captureQueue
	uploads *service.UploadService
}

// setupApp wires the upload routes the way the server does, with legacy
// HMAC auth and in-memory collaborators
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()
	ws, err := workspace.New(t.TempDir(), nil)
	require.NoError(t, err)
	uploads, err := service.NewUploadService(okAPI{}, okTransferer{}, ws, validate, nil)
	require.NoError(t, err)
	queue := &captureQueue{}
	jobs := service.NewJobService(&memoryJobStore{jobs: make(map[string]model.Job)}, queue)

	uploadHandler := NewUploadHandler(jobs, uploads, ws, validate, nil)
	authHandler := NewAuthHandler(nil, testJWTSecret)

	app := fiber.New(fiber.Config{BodyLimit: MaxUploadSize})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", middleware.NewLegacyAuthMiddleware(testJWTSecret).Authenticate())
	upload := api.Group("/upload")
	upload.Post("/media", uploadHandler.Media)
	upload.Post("/trailer", uploadHandler.Trailer)
	upload.Get("/status/:jobId", uploadHandler.Status)
	upload.Get("/current/:kind", uploadHandler.Current)
	upload.Post("/detach/:kind", uploadHandler.Detach)

	return &testApp{app: app, ws: ws, queue: queue, uploads: uploads}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.NewLegacyToken(userID, userID+"@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return signed
}

// multipartRequest builds an authenticated upload with the given fields and
// an optional file
func multipartRequest(t *testing.T, path, userID string, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		header.Set("Content-Type", "application/octet-stream")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	return req
}

func authedRequest(t *testing.T, method, path, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token(t, userID))
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string]interface{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &result), string(body))
	}
	return resp.StatusCode, result
}

func workspaceFiles(t *testing.T, ws *workspace.Workspace) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(ws.Dir())
	require.NoError(t, err)
	return entries
}

func TestUploadMediaQueuesJob(t *testing.T) {
	ta := setupApp(t)

	req := multipartRequest(t, "/api/upload/media", "user-1",
		map[string]string{"title": "Launch day", "caption": "We are live"}, "clip.mp4", mp4Bytes)
	status, body := do(t, ta.app, req)
	require.Equal(t, http.StatusAccepted, status)
	assert.NotEmpty(t, body["jobId"])
	assert.Equal(t, "media", body["kind"])
	assert.Equal(t, "queued", body["status"])

	require.Len(t, ta.queue.tasks, 1)
	var task struct {
		JobID   string                 `json:"jobId"`
		Payload model.UploadJobPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(ta.queue.tasks[0].Payload(), &task))
	assert.Equal(t, body["jobId"], task.JobID)
	assert.Equal(t, "clip.mp4", task.Payload.Filename)
	assert.Equal(t, "Launch day", task.Payload.Content.Title)
	assert.FileExists(t, task.Payload.Path)

	status, body = do(t, ta.app, authedRequest(t, http.MethodGet, "/api/upload/status/"+task.JobID, "user-1"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "queued", body["status"])

	status, _ = do(t, ta.app, authedRequest(t, http.MethodGet, "/api/upload/status/"+task.JobID, "user-2"))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUploadMediaValidation(t *testing.T) {
	ta := setupApp(t)

	status, body := do(t, ta.app, multipartRequest(t, "/api/upload/media", "user-1", nil, "clip.mp4", mp4Bytes))
	assert.Equal(t, http.StatusBadRequest, status)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	assert.Equal(t, map[string]interface{}{"Title": "required"}, errBody["details"])

	status, body = do(t, ta.app, multipartRequest(t, "/api/upload/media", "user-1", map[string]string{"title": "No file"}, "", nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "File is required", body["error"].(map[string]interface{})["message"])

	assert.Empty(t, ta.queue.tasks)
}

func TestUploadRejectsUnsupportedMedia(t *testing.T) {
	ta := setupApp(t)

	status, body := do(t, ta.app, multipartRequest(t, "/api/upload/media", "user-1",
		map[string]string{"title": "Notes"}, "notes.txt", []byte("plain text, not media")))
	assert.Equal(t, http.StatusUnsupportedMediaType, status)
	assert.Equal(t, "UNSUPPORTED_MEDIA", body["error"].(map[string]interface{})["code"])

	status, _ = do(t, ta.app, multipartRequest(t, "/api/upload/trailer", "user-1", nil, "cover.png", pngBytes))
	assert.Equal(t, http.StatusUnsupportedMediaType, status, "trailers must be video")

	assert.Empty(t, ta.queue.tasks)
	assert.Empty(t, workspaceFiles(t, ta.ws), "rejected files are discarded")
}

func TestUploadTrailerQueuesJob(t *testing.T) {
	ta := setupApp(t)

	status, body := do(t, ta.app, multipartRequest(t, "/api/upload/trailer", "user-1", nil, "trailer.mp4", mp4Bytes))
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "trailer", body["kind"])
	assert.Len(t, ta.queue.tasks, 1)
}

func TestUploadRequiresAuthentication(t *testing.T) {
	ta := setupApp(t)

	status, _ := do(t, ta.app, multipartRequest(t, "/api/upload/trailer", "", nil, "trailer.mp4", mp4Bytes))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Empty(t, ta.queue.tasks)
}

func TestCurrentAndDetach(t *testing.T) {
	ta := setupApp(t)

	status, _ := do(t, ta.app, authedRequest(t, http.MethodGet, "/api/upload/current/trailer", "user-1"))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, ta.app, authedRequest(t, http.MethodGet, "/api/upload/current/podcast", "user-1"))
	assert.Equal(t, http.StatusBadRequest, status)

	src := ta.ws.IncomingPath("trailer.mp4")
	require.NoError(t, os.WriteFile(src, mp4Bytes, 0o600))
	stream, err := ta.uploads.UploadTrailer(context.Background(), src)
	require.NoError(t, err)
	for range stream {
	}

	status, body := do(t, ta.app, authedRequest(t, http.MethodGet, "/api/upload/current/trailer", "user-1"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(100), body["percent"])
	assert.Equal(t, "Upload complete", body["text"])
	progress, ok := body["progress"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, progress, "destinationUrl")
	assert.Equal(t, true, progress["completed"])

	// the service itself still keeps the destination
	snap, ok := ta.uploads.Current(model.UploadKindTrailer)
	require.True(t, ok)
	assert.Equal(t, "https://up.example/trailer", snap.DestinationURL)

	status, body = do(t, ta.app, authedRequest(t, http.MethodPost, "/api/upload/detach/trailer", "user-1"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["detached"], "a finished run has nothing to detach")
}

func TestAuthVerify(t *testing.T) {
	ta := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = authedRequest(t, http.MethodGet, "/auth/verify", "user-1")
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-1", resp.Header.Get(middleware.HeaderUserID))
	assert.Equal(t, "user-1@example.com", resp.Header.Get(middleware.HeaderUserEmail))
}
