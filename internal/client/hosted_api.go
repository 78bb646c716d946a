package client

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

const (
	postKeyPrefix  = "post:"
	trailerKey     = "trailer:current"
	postTTL        = 7 * 24 * time.Hour
	defaultURLLife = time.Hour
)

// Post record statuses
const (
	PostStatusDraft     = "draft"
	PostStatusUploading = "uploading"
	PostStatusUploaded  = "uploaded"
	PostStatusPublished = "published"
)

// HostedAPI implements PostAPI without a remote service: post records live
// in redis and media is uploaded straight to object storage through
// presigned URLs
type HostedAPI struct {
	redis     *redis.Client
	storage   ObjectStore
	urlExpiry time.Duration
	log       *logger.Logger
}

func NewHostedAPI(redisClient *redis.Client, storage ObjectStore, urlExpiry time.Duration, log *logger.Logger) *HostedAPI {
	if urlExpiry <= 0 {
		urlExpiry = defaultURLLife
	}
	if log == nil {
		log = logger.Discard()
	}
	return &HostedAPI{
		redis:     redisClient,
		storage:   storage,
		urlExpiry: urlExpiry,
		log:       log.WithField("topic", "api"),
	}
}

func (h *HostedAPI) CreatePost(ctx context.Context) (string, error) {
	postID := uuid.New().String()
	key := postKeyPrefix + postID

	pipe := h.redis.TxPipeline()
	pipe.HSet(ctx, key,
		"status", PostStatusDraft,
		"createdAt", time.Now().UTC().Format(time.RFC3339),
	)
	pipe.Expire(ctx, key, postTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to save post: %w", err)
	}

	h.log.Info("post created", "post_id", postID)
	return postID, nil
}

func (h *HostedAPI) GetMediaUploadURL(ctx context.Context, postID string, desc model.MediaDescriptor) (string, string, error) {
	post, err := h.post(ctx, postID)
	if err != nil {
		return "", "", err
	}
	if post["status"] == PostStatusPublished {
		return "", "", fmt.Errorf("%w: post %s is already published", ErrRefused, postID)
	}

	mediaID := uuid.New().String()
	objectKey := fmt.Sprintf("posts/%s/%s%s", postID, mediaID, strings.ToLower(filepath.Ext(desc.Filename)))

	uploadURL, err := h.storage.PresignPut(ctx, objectKey, desc.ContentType, h.urlExpiry)
	if err != nil {
		return "", "", err
	}

	if err := h.redis.HSet(ctx, postKeyPrefix+postID,
		"status", PostStatusUploading,
		"mediaId", mediaID,
		"mediaKey", objectKey,
		"mediaType", string(desc.Type),
		"contentType", desc.ContentType,
	).Err(); err != nil {
		return "", "", fmt.Errorf("failed to update post: %w", err)
	}

	return uploadURL, mediaID, nil
}

func (h *HostedAPI) CompleteMediaUpload(ctx context.Context, postID, mediaID string) error {
	post, err := h.post(ctx, postID)
	if err != nil {
		return err
	}
	if post["mediaId"] != mediaID {
		return fmt.Errorf("%w: media %s on post %s", ErrNotFound, mediaID, postID)
	}

	exists, err := h.storage.Exists(ctx, post["mediaKey"])
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: media %s was not uploaded", ErrRefused, mediaID)
	}

	return h.redis.HSet(ctx, postKeyPrefix+postID,
		"status", PostStatusUploaded,
		"mediaUrl", h.storage.GetPublicURL(post["mediaKey"]),
	).Err()
}

func (h *HostedAPI) SetPostContent(ctx context.Context, postID string, content model.PostContent) error {
	if _, err := h.post(ctx, postID); err != nil {
		return err
	}
	return h.redis.HSet(ctx, postKeyPrefix+postID,
		"title", content.Title,
		"caption", content.Caption,
	).Err()
}

func (h *HostedAPI) Publish(ctx context.Context, postID string) error {
	post, err := h.post(ctx, postID)
	if err != nil {
		return err
	}
	if post["status"] != PostStatusUploaded {
		return fmt.Errorf("%w: post %s is %s", ErrRefused, postID, post["status"])
	}

	if err := h.redis.HSet(ctx, postKeyPrefix+postID,
		"status", PostStatusPublished,
		"publishedAt", time.Now().UTC().Format(time.RFC3339),
	).Err(); err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}

	h.log.Info("post published", "post_id", postID)
	return nil
}

func (h *HostedAPI) GetTrailerUploadURL(ctx context.Context) (string, error) {
	objectKey := fmt.Sprintf("trailers/%s", uuid.New().String())

	uploadURL, err := h.storage.PresignPut(ctx, objectKey, "", h.urlExpiry)
	if err != nil {
		return "", err
	}

	if err := h.redis.HSet(ctx, trailerKey, "pendingKey", objectKey).Err(); err != nil {
		return "", fmt.Errorf("failed to save trailer: %w", err)
	}
	return uploadURL, nil
}

// CompleteTrailerUpload promotes the pending trailer object. The object it
// replaces is deleted best-effort.
func (h *HostedAPI) CompleteTrailerUpload(ctx context.Context) error {
	trailer, err := h.redis.HGetAll(ctx, trailerKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get trailer: %w", err)
	}
	pending := trailer["pendingKey"]
	if pending == "" {
		return fmt.Errorf("%w: no trailer upload pending", ErrNotFound)
	}

	exists, err := h.storage.Exists(ctx, pending)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: trailer was not uploaded", ErrRefused)
	}

	pipe := h.redis.TxPipeline()
	pipe.HSet(ctx, trailerKey,
		"key", pending,
		"url", h.storage.GetPublicURL(pending),
		"status", PostStatusUploaded,
		"updatedAt", time.Now().UTC().Format(time.RFC3339),
	)
	pipe.HDel(ctx, trailerKey, "pendingKey")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save trailer: %w", err)
	}

	if previous := trailer["key"]; previous != "" && previous != pending {
		if err := h.storage.Delete(ctx, previous); err != nil {
			h.log.Warn("failed to delete previous trailer", "key", previous, "error", err)
		}
	}
	return nil
}

func (h *HostedAPI) post(ctx context.Context, postID string) (map[string]string, error) {
	post, err := h.redis.HGetAll(ctx, postKeyPrefix+postID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if len(post) == 0 {
		return nil, fmt.Errorf("%w: post %s", ErrNotFound, postID)
	}
	return post, nil
}
