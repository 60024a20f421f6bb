package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// CheckoutLockRepository serialises checkout creation per subject using short-lived Redis keys.
type CheckoutLockRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCheckoutLockRepository constructs the lock repository. A nil client disables locking.
func NewCheckoutLockRepository(client *redis.Client, logger *zap.Logger) *CheckoutLockRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutLockRepository{client: client, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (r *CheckoutLockRepository) Enabled() bool {
	return r != nil && r.client != nil
}

// Acquire tries to take the lock for key. It returns a release func when acquired and
// acquired=false when another holder owns the key.
func (r *CheckoutLockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error) {
	if !r.Enabled() {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release = func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			r.logger.Warn("checkout lock release failed", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}

// Close releases the underlying Redis connection if present.
func (r *CheckoutLockRepository) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}
