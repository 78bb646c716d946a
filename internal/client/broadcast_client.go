package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/realityworks/broadcast-app/internal/config"
	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

// BroadcastClient implements PostAPI against the Broadcast REST API
type BroadcastClient struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// NewBroadcastClient creates a client that signs in with the account
// credentials on first use and refreshes its token as needed
func NewBroadcastClient(cfg *config.BroadcastConfig, log *logger.Logger) (*BroadcastClient, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("broadcast API configuration incomplete")
	}
	if log == nil {
		log = logger.Discard()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	oauthCfg := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.BaseURL + "/connect/account",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"offline_access"},
	}

	src := &passwordTokenSource{
		ctx:      ctx,
		conf:     oauthCfg,
		username: cfg.Username,
		password: cfg.Password,
		log:      log,
	}

	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, src))
	httpClient.Timeout = timeout

	return &BroadcastClient{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		log:        log.WithField("topic", "api"),
	}, nil
}

// CreatePost creates an empty draft post
func (c *BroadcastClient) CreatePost(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/posts", nil)
	if err != nil {
		return "", err
	}
	fields, err := required(body, "postId")
	if err != nil {
		return "", err
	}
	return fields[0], nil
}

// GetMediaUploadURL asks for a signed destination for the post's media
func (c *BroadcastClient) GetMediaUploadURL(ctx context.Context, postID string, desc model.MediaDescriptor) (string, string, error) {
	body, err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/media", desc)
	if err != nil {
		return "", "", err
	}
	fields, err := required(body, "uploadUrl", "mediaId")
	if err != nil {
		return "", "", err
	}
	return fields[0], fields[1], nil
}

// GetTrailerUploadURL asks for a signed destination for the profile trailer
func (c *BroadcastClient) GetTrailerUploadURL(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/profile/trailer/upload-url", nil)
	if err != nil {
		return "", err
	}
	fields, err := required(body, "uploadUrl")
	if err != nil {
		return "", err
	}
	return fields[0], nil
}

func (c *BroadcastClient) CompleteMediaUpload(ctx context.Context, postID, mediaID string) error {
	endpoint := fmt.Sprintf("/posts/%s/media/%s/complete", url.PathEscape(postID), url.PathEscape(mediaID))
	_, err := c.do(ctx, http.MethodPost, endpoint, nil)
	return err
}

func (c *BroadcastClient) CompleteTrailerUpload(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/profile/trailer/complete", nil)
	return err
}

func (c *BroadcastClient) SetPostContent(ctx context.Context, postID string, content model.PostContent) error {
	_, err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(postID)+"/content", content)
	return err
}

func (c *BroadcastClient) Publish(ctx context.Context, postID string) error {
	_, err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/publish", nil)
	return err
}

// do sends a request with an optional JSON body and returns the raw response
// body of a 2xx reply
func (c *BroadcastClient) do(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("request", "method", method, "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("response", "method", method, "endpoint", endpoint, "status", resp.StatusCode)

	if err := statusError(resp.StatusCode, respBody); err != nil {
		c.log.Warn("request rejected", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
		return nil, err
	}
	return respBody, nil
}

// required extracts string fields from a JSON body; a missing or empty field
// is a decoding error
func required(body []byte, paths ...string) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrDecoding)
	}
	results := gjson.GetManyBytes(body, paths...)
	out := make([]string, len(paths))
	for i, r := range results {
		if !r.Exists() || r.String() == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrDecoding, paths[i])
		}
		out[i] = r.String()
	}
	return out, nil
}

// passwordTokenSource signs in with the resource-owner password grant and
// then refreshes with the offline token. A rejected refresh falls back to
// signing in again.
type passwordTokenSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
	log      *logger.Logger

	mu  sync.Mutex
	src oauth2.TokenSource
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src != nil {
		tok, err := s.src.Token()
		if err == nil {
			return tok, nil
		}
		s.log.Warn("token refresh failed, signing in again", "topic", "auth", "error", err)
		s.src = nil
	}

	tok, err := s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			if mapped := statusError(re.Response.StatusCode, re.Body); mapped != nil {
				if errors.Is(mapped, ErrNotFound) || errors.Is(mapped, ErrRefused) {
					return nil, mapped
				}
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	s.log.Info("signed in", "topic", "auth", "user", s.username)
	s.src = s.conf.TokenSource(s.ctx, tok)
	return tok, nil
}
