package client

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realityworks/broadcast-app/internal/model"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string]bool
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string]bool)}
}

func (m *memoryStore) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://store.example/" + key + "?sig=1", nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key], nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryStore) GetPublicURL(key string) string { return "https://cdn.example/" + key }

func (m *memoryStore) put(signedURL string) {
	key := strings.TrimPrefix(strings.SplitN(signedURL, "?", 2)[0], "https://store.example/")
	m.mu.Lock()
	m.objects[key] = true
	m.mu.Unlock()
}

// testRedis connects to the local redis on DB 15 and flushes it
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestHostedAPIMediaFlow(t *testing.T) {
	rdb := testRedis(t)
	store := newMemoryStore()
	api := NewHostedAPI(rdb, store, time.Minute, nil)
	ctx := context.Background()

	postID, err := api.CreatePost(ctx)
	require.NoError(t, err)

	uploadURL, mediaID, err := api.GetMediaUploadURL(ctx, postID, model.MediaDescriptor{
		Type: model.MediaTypeImage, ContentType: "image/png", Filename: "Cover.PNG",
	})
	require.NoError(t, err)
	assert.Contains(t, uploadURL, "posts/"+postID+"/"+mediaID+".png")

	// finalizing before the bytes arrive is refused
	err = api.CompleteMediaUpload(ctx, postID, mediaID)
	assert.ErrorIs(t, err, ErrRefused)

	store.put(uploadURL)
	require.NoError(t, api.CompleteMediaUpload(ctx, postID, mediaID))
	require.NoError(t, api.SetPostContent(ctx, postID, model.PostContent{Title: "Cover", Caption: "new art"}))
	require.NoError(t, api.Publish(ctx, postID))

	post, err := api.post(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, PostStatusPublished, post["status"])
	assert.Equal(t, "Cover", post["title"])
	assert.Equal(t, "image", post["mediaType"])

	ttl, err := rdb.TTL(ctx, postKeyPrefix+postID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestHostedAPIUnknownPost(t *testing.T) {
	rdb := testRedis(t)
	api := NewHostedAPI(rdb, newMemoryStore(), 0, nil)

	_, _, err := api.GetMediaUploadURL(context.Background(), "missing", model.MediaDescriptor{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, api.Publish(context.Background(), "missing"), ErrNotFound)
}

func TestHostedAPIPublishRequiresMedia(t *testing.T) {
	rdb := testRedis(t)
	api := NewHostedAPI(rdb, newMemoryStore(), 0, nil)

	postID, err := api.CreatePost(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, api.Publish(context.Background(), postID), ErrRefused)
}

func TestHostedAPITrailerReplacesPrevious(t *testing.T) {
	rdb := testRedis(t)
	store := newMemoryStore()
	api := NewHostedAPI(rdb, store, 0, nil)
	ctx := context.Background()

	assert.ErrorIs(t, api.CompleteTrailerUpload(ctx), ErrNotFound)

	first, err := api.GetTrailerUploadURL(ctx)
	require.NoError(t, err)
	store.put(first)
	require.NoError(t, api.CompleteTrailerUpload(ctx))

	second, err := api.GetTrailerUploadURL(ctx)
	require.NoError(t, err)
	store.put(second)
	require.NoError(t, api.CompleteTrailerUpload(ctx))

	require.Len(t, store.deleted, 1)
	assert.Contains(t, first, store.deleted[0])

	trailer, err := rdb.HGetAll(ctx, trailerKey).Result()
	require.NoError(t, err)
	assert.Empty(t, trailer["pendingKey"])
	assert.Contains(t, second, trailer["key"])
}
