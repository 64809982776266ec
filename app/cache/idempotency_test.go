package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "idempotent-key:abc", redisKey("abc"))
}

// newTestGuard needs a live server; set REDIS_ADDR to run these
func newTestGuard(t *testing.T) *IdempotencyGuard {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	g := NewIdempotencyGuard(addr, os.Getenv("REDIS_PASSWORD"), 0, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.Ping(ctx); err != nil {
		_ = g.Close()
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestIdempotencyGuard_ClaimCompleteRelease(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()
	key := uuid.NewString()
	t.Cleanup(func() { _ = g.Release(ctx, key) })

	existing, err := g.Claim(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, existing)

	_, err = g.Claim(ctx, key)
	require.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, g.Complete(ctx, key, "order-1"))
	existing, err = g.Claim(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "order-1", existing)

	require.NoError(t, g.Release(ctx, key))
	existing, err = g.Claim(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, existing)
}
