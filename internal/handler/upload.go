package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/realityworks/broadcast-app/internal/middleware"
	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/internal/service"
	"github.com/realityworks/broadcast-app/internal/workspace"
	"github.com/realityworks/broadcast-app/pkg/logger"
	"github.com/realityworks/broadcast-app/pkg/response"
)

// MaxUploadSize bounds one multipart upload, file and fields included
const MaxUploadSize = 512 * 1024 * 1024 // 512MB

var (
	errFileRequired = errors.New("file is required")
	errFileTooLarge = errors.New("file size exceeds limit")
)

type UploadHandler struct {
	jobs      *service.JobService
	uploads   *service.UploadService
	ws        *workspace.Workspace
	validator *validator.Validate
	log       *logger.Logger
}

func NewUploadHandler(jobs *service.JobService, uploads *service.UploadService, ws *workspace.Workspace, v *validator.Validate, log *logger.Logger) *UploadHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &UploadHandler{
		jobs:      jobs,
		uploads:   uploads,
		ws:        ws,
		validator: v,
		log:       log.WithField("topic", "upload"),
	}
}

// Media handles POST /api/upload/media
// @Summary      Upload post media
// @Description  Queue an image or video to be published as a new post
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file    formData file   true  "Image or video"
// @Param        title   formData string true  "Post title"
// @Param        caption formData string false "Post caption"
// @Success      202 {object} model.UploadStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      415 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/media [post]
func (h *UploadHandler) Media(c *fiber.Ctx) error {
	content := model.PostContent{
		Title:   c.FormValue("title"),
		Caption: c.FormValue("caption"),
	}
	if err := h.validator.Struct(&content); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	path, filename, err := h.receive(c, model.UploadKindMedia)
	if err != nil {
		return receiveError(c, err)
	}

	return h.start(c, &model.UploadJobPayload{
		Kind:     model.UploadKindMedia,
		Path:     path,
		Filename: filename,
		Content:  &content,
	})
}

// Trailer handles POST /api/upload/trailer
// @Summary      Upload profile trailer
// @Description  Queue a video to replace the profile trailer
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Video"
// @Success      202 {object} model.UploadStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      415 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/trailer [post]
func (h *UploadHandler) Trailer(c *fiber.Ctx) error {
	path, filename, err := h.receive(c, model.UploadKindTrailer)
	if err != nil {
		return receiveError(c, err)
	}

	return h.start(c, &model.UploadJobPayload{
		Kind:     model.UploadKindTrailer,
		Path:     path,
		Filename: filename,
	})
}

// Status handles GET /api/upload/status/:jobId
// @Summary      Upload job status
// @Tags         Upload
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.UploadStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/status/{jobId} [get]
func (h *UploadHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.jobs.GetStatus(c.UserContext(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Current handles GET /api/upload/current/:kind. The snapshot is returned
// without its upload destination.
// @Summary      Current upload snapshot
// @Tags         Upload
// @Produce      json
// @Param        kind path string true "Upload kind" Enums(media, trailer)
// @Success      200 {object} model.UploadCurrentResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/current/{kind} [get]
func (h *UploadHandler) Current(c *fiber.Ctx) error {
	kind, err := model.ParseUploadKind(c.Params("kind"))
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	snap, ok := h.uploads.Current(kind)
	if !ok {
		return response.NotFound(c, fmt.Sprintf("No %s upload has run", kind))
	}
	// the presigned URL grants write access; it stays with the job owner
	snap.DestinationURL = ""

	return response.OK(c, model.UploadCurrentResponse{
		Kind:     kind,
		Percent:  snap.Percent(),
		Text:     snap.ProgressText(),
		Progress: snap,
	})
}

// Detach handles POST /api/upload/detach/:kind
// @Summary      Stop following the current upload
// @Tags         Upload
// @Produce      json
// @Param        kind path string true "Upload kind" Enums(media, trailer)
// @Success      200 {object} model.UploadDetachResponse
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/detach/{kind} [post]
func (h *UploadHandler) Detach(c *fiber.Ctx) error {
	kind, err := model.ParseUploadKind(c.Params("kind"))
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.OK(c, model.UploadDetachResponse{
		Kind:     kind,
		Detached: h.uploads.Detach(kind),
	})
}

// receive stores the multipart file in the workspace and checks it can be
// uploaded as kind
func (h *UploadHandler) receive(c *fiber.Ctx, kind model.UploadKind) (string, string, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return "", "", errFileRequired
	}
	if file.Size > MaxUploadSize {
		return "", "", errFileTooLarge
	}

	path := h.ws.IncomingPath(file.Filename)
	if err := c.SaveFile(file, path); err != nil {
		return "", "", fmt.Errorf("failed to store upload: %w", err)
	}

	desc, err := workspace.Describe(path, file.Filename)
	if err == nil && kind == model.UploadKindTrailer && desc.Type != model.MediaTypeVideo {
		err = fmt.Errorf("%w: trailer must be a video, got %s", workspace.ErrUnsupportedMedia, desc.ContentType)
	}
	if err != nil {
		h.discard(path)
		return "", "", err
	}

	return path, file.Filename, nil
}

func (h *UploadHandler) start(c *fiber.Ctx, payload *model.UploadJobPayload) error {
	result, err := h.jobs.StartUpload(c.UserContext(), middleware.GetUserID(c), payload)
	if err != nil {
		h.discard(payload.Path)
		return response.ServiceError(c, err.Error())
	}

	h.log.Info("upload queued", "job_id", result.JobID, "kind", payload.Kind, "file", payload.Filename)
	return response.Accepted(c, result)
}

func (h *UploadHandler) discard(path string) {
	if err := h.ws.Remove(path); err != nil {
		h.log.Warn("failed to remove incoming file", "path", path, "error", err)
	}
}

func receiveError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errFileRequired):
		return response.ValidationError(c, "File is required", nil)
	case errors.Is(err, errFileTooLarge):
		return response.ValidationError(c, "File size exceeds 512MB limit", map[string]interface{}{
			"maxSize": MaxUploadSize,
		})
	case errors.Is(err, workspace.ErrUnsupportedMedia):
		return response.UnsupportedMedia(c, "Unsupported media. Upload an image or a video", map[string]interface{}{
			"reason": err.Error(),
		})
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return nil
}
