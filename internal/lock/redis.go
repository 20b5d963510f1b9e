package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

const (
	defaultKeyPrefix = "ivms:lock:"
	defaultTTL       = 10 * time.Minute
	retryInterval    = 100 * time.Millisecond
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lock shared by every worker replica. The TTL bounds how
// long a crashed holder can block the key.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	log       *zap.Logger
}

// NewRedisLocker creates a RedisLocker on an existing client.
func NewRedisLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, keyPrefix: defaultKeyPrefix, ttl: ttl, log: logger.OrNop(log)}
}

var _ port.Locker = (*RedisLocker)(nil)

// Acquire polls SET NX until the key is taken or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	k := l.keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("lock.Acquire %s: %w: %v", key, domain.ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("lock.Acquire %s: %w", key, err)
		}
		if ok {
			return l.releaser(k, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock.Acquire %s: %w: %v", key, domain.ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) releaser(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.log.Warn("lock.Release: release failed", zap.String("key", key), zap.Error(err))
			return
		}
		if n == 0 {
			l.log.Warn("lock.Release: lock expired before release", zap.String("key", key))
		}
	}
}
