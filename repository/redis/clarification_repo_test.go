package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/domain"
)

// Needs a disposable server: TASKPILOT_TEST_REDIS_URL=redis://localhost:6379/15
func newTestClient(t *testing.T) *redislib.Client {
	t.Helper()
	url := os.Getenv("TASKPILOT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TASKPILOT_TEST_REDIS_URL not set")
	}
	opts, err := redislib.ParseURL(url)
	require.NoError(t, err)
	client := redislib.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestClarificationRepository(t *testing.T) {
	client := newTestClient(t)
	repo := NewClarificationRepository(client, time.Minute)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	require.NoError(t, repo.Put(ctx, key, "pay john sometime today"))
	ttl, err := client.TTL(ctx, "clarification:"+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	text, err := repo.Take(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "pay john sometime today", text)

	_, err = repo.Take(ctx, key)
	assert.ErrorIs(t, err, domain.ErrClarificationNotFound)

	require.NoError(t, repo.Put(ctx, key, "again"))
	require.NoError(t, repo.Delete(ctx, key))
	_, err = repo.Take(ctx, key)
	assert.ErrorIs(t, err, domain.ErrClarificationNotFound)
}
