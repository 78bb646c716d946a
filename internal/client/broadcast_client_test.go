package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityworks/broadcast-app/internal/config"
	"github.com/realityworks/broadcast-app/internal/model"
)

type fakeBroadcast struct {
	signIns atomic.Int32
	mux     *http.ServeMux
	server  *httptest.Server
	content model.PostContent
}

func newFakeBroadcast(t *testing.T) *fakeBroadcast {
	t.Helper()

	f := &fakeBroadcast{mux: http.NewServeMux()}
	f.mux.HandleFunc("/connect/account", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("grant_type") != "password" ||
			r.PostForm.Get("username") != "creator" ||
			r.PostForm.Get("password") != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		assert.Equal(t, "offline_access", r.PostForm.Get("scope"))
		f.signIns.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600,"refresh_token":"ref-1"}`))
	})
	f.mux.HandleFunc("/posts", f.authed(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"postId":"p-1","status":"draft"}`))
	}))
	f.mux.HandleFunc("/posts/p-1/media", f.authed(t, func(w http.ResponseWriter, r *http.Request) {
		var desc model.MediaDescriptor
		require.NoError(t, json.NewDecoder(r.Body).Decode(&desc))
		assert.Equal(t, model.MediaTypeVideo, desc.Type)
		_, _ = w.Write([]byte(`{"uploadUrl":"https://up.example/p-1","mediaId":"m-1"}`))
	}))
	f.mux.HandleFunc("/posts/p-1/media/m-1/complete", f.authed(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	f.mux.HandleFunc("/posts/p-1/content", f.authed(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.content))
		w.WriteHeader(http.StatusNoContent)
	}))
	f.mux.HandleFunc("/posts/p-1/publish", f.authed(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	f.mux.HandleFunc("/profile/trailer/upload-url", f.authed(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"uploadUrl":"https://up.example/trailer"}`))
	}))
	f.mux.HandleFunc("/profile/trailer/complete", f.authed(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBroadcast) authed(t *testing.T, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		next(w, r)
	}
}

func newTestClient(t *testing.T, baseURL, password string) *BroadcastClient {
	t.Helper()
	c, err := NewBroadcastClient(&config.BroadcastConfig{
		BaseURL:  baseURL,
		Username: "creator",
		Password: password,
		Timeout:  5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewBroadcastClientRequiresCredentials(t *testing.T) {
	_, err := NewBroadcastClient(&config.BroadcastConfig{BaseURL: "http://x"}, nil)
	assert.Error(t, err)
}

func TestBroadcastClientMediaFlow(t *testing.T) {
	f := newFakeBroadcast(t)
	c := newTestClient(t, f.server.URL, "secret")
	ctx := context.Background()

	postID, err := c.CreatePost(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p-1", postID)

	uploadURL, mediaID, err := c.GetMediaUploadURL(ctx, postID, model.MediaDescriptor{
		Type:        model.MediaTypeVideo,
		ContentType: "video/mp4",
		Filename:    "clip.mp4",
		Size:        42,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://up.example/p-1", uploadURL)
	assert.Equal(t, "m-1", mediaID)

	require.NoError(t, c.CompleteMediaUpload(ctx, postID, mediaID))
	require.NoError(t, c.SetPostContent(ctx, postID, model.PostContent{Title: "Hi", Caption: "there"}))
	assert.Equal(t, "Hi", f.content.Title)
	require.NoError(t, c.Publish(ctx, postID))

	// one sign-in serves every call
	assert.Equal(t, int32(1), f.signIns.Load())
}

func TestBroadcastClientTrailerFlow(t *testing.T) {
	f := newFakeBroadcast(t)
	c := newTestClient(t, f.server.URL, "secret")

	uploadURL, err := c.GetTrailerUploadURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://up.example/trailer", uploadURL)
	require.NoError(t, c.CompleteTrailerUpload(context.Background()))
}

func TestBroadcastClientRejectedSignIn(t *testing.T) {
	f := newFakeBroadcast(t)
	c := newTestClient(t, f.server.URL, "wrong")

	_, err := c.CreatePost(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestBroadcastClientStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrAuthenticationFailed},
		{http.StatusForbidden, ErrRefused},
		{http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := newFakeBroadcast(t)
			f.mux.HandleFunc("/posts/p-2/publish", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			c := newTestClient(t, f.server.URL, "secret")

			err := c.Publish(context.Background(), "p-2")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("other status", func(t *testing.T) {
		f := newFakeBroadcast(t)
		f.mux.HandleFunc("/posts/p-2/publish", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		})
		c := newTestClient(t, f.server.URL, "secret")

		err := c.Publish(context.Background(), "p-2")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "upstream down", apiErr.Body)
	})
}

func TestBroadcastClientDecodingErrors(t *testing.T) {
	f := newFakeBroadcast(t)
	f.mux.HandleFunc("/posts/p-3/media", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"uploadUrl":"https://up.example/p-3"}`))
	})
	f.mux.HandleFunc("/posts/p-4/media", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	c := newTestClient(t, f.server.URL, "secret")

	_, _, err := c.GetMediaUploadURL(context.Background(), "p-3", model.MediaDescriptor{})
	assert.ErrorIs(t, err, ErrDecoding)
	assert.Contains(t, err.Error(), "mediaId")

	_, _, err = c.GetMediaUploadURL(context.Background(), "p-4", model.MediaDescriptor{})
	assert.ErrorIs(t, err, ErrDecoding)
}
