package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// ErrInFlight is returned while another request holding the same key runs
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// IdempotencyGuard remembers which order an Idempotency-Key produced so a
// retried create returns the first order instead of making a second one.
type IdempotencyGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewIdempotencyGuard connects to addr. ttl bounds how long keys are kept.
func NewIdempotencyGuard(addr, password string, db int, ttl time.Duration) *IdempotencyGuard {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &IdempotencyGuard{rdb: rdb, ttl: ttl}
}

func redisKey(key string) string {
	return fmt.Sprintf("idempotent-key:%s", key)
}

// Ping checks the connection
func (g *IdempotencyGuard) Ping(ctx context.Context) error {
	return g.rdb.Ping(ctx).Err()
}

// Claim reserves key. It returns the order id stored by an earlier completed
// request, ErrInFlight while one is running, or "" when the caller now owns it.
func (g *IdempotencyGuard) Claim(ctx context.Context, key string) (string, error) {
	ok, err := g.rdb.SetNX(ctx, redisKey(key), pendingMarker, g.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return "", nil
	}

	val, err := g.rdb.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return g.Claim(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if val == pendingMarker {
		return "", ErrInFlight
	}
	return val, nil
}

// Complete stores the order id produced under key
func (g *IdempotencyGuard) Complete(ctx context.Context, key, orderID string) error {
	return g.rdb.Set(ctx, redisKey(key), orderID, g.ttl).Err()
}

// Release forgets key after a failed request so it may be retried
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, redisKey(key)).Err()
}

// Close closes the redis client
func (g *IdempotencyGuard) Close() error {
	return g.rdb.Close()
}
