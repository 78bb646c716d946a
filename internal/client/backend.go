package client

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/realityworks/broadcast-app/internal/config"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

// ErrNotConfigured means the selected backend lacks the settings it needs
var ErrNotConfigured = errors.New("upload backend not configured")

// NewPostAPI builds the backend selected by cfg.Broadcast.Mode. Hosted mode
// also returns the object store it presigns against.
func NewPostAPI(cfg *config.Config, redisClient *redis.Client, log *logger.Logger) (PostAPI, *R2Client, error) {
	if cfg.Broadcast.IsHosted() {
		if redisClient == nil {
			return nil, nil, fmt.Errorf("%w: hosted mode needs redis", ErrNotConfigured)
		}
		r2Client, err := NewR2Client(&cfg.R2)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrNotConfigured, err)
		}
		return NewHostedAPI(redisClient, r2Client, cfg.R2.UploadURLExpiry, log), r2Client, nil
	}

	if !cfg.Broadcast.IsConfigured() {
		return nil, nil, fmt.Errorf("%w: broadcast base url, username and password are required", ErrNotConfigured)
	}
	broadcastClient, err := NewBroadcastClient(&cfg.Broadcast, log)
	if err != nil {
		return nil, nil, err
	}
	return broadcastClient, nil, nil
}
