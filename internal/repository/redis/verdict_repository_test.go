//go:build integration

package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"phishSentinel/domain"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestVerdictRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewVerdictRepository(newTestClient(t), time.Minute)

	require.NoError(t, repo.SaveTabVerdict(ctx, 42, domain.TabVerdict{Score: 0.91, Decision: "phishing"}))

	got, err := repo.GetTabVerdict(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0.91, got.Score)
	assert.Equal(t, "phishing", got.Decision)

	ttl, err := repo.client.TTL(ctx, verdictKey(42)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, repo.DeleteTabVerdict(ctx, 42))
	_, err = repo.GetTabVerdict(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrVerdictNotFound)
}
