package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
)

const (
	redisKeyPrefix    = "studygen:lock:"
	redisPollInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only while it still carries our token
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock only while it still carries our token
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a KeyedLocker shared between processes. Locks expire after ttl so a
// crashed holder cannot wedge a key forever; a live holder renews its lock every
// ttl/3 until it unlocks.
type RedisLocker struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger arbor.ILogger
}

// NewRedisLocker connects to Redis and verifies the connection with a ping
func NewRedisLocker(ctx context.Context, config *common.LocksConfig, ttl time.Duration, logger arbor.ILogger) (*RedisLocker, error) {
	addr := strings.TrimSpace(config.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    config.RedisPassword,
		DB:          config.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Debug().Str("addr", addr).Dur("ttl", ttl).Msg("Redis locker connected")

	return &RedisLocker{rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Lock polls SET NX until the key is acquired or ctx is done
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisPollInterval):
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go r.renew(redisKey, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped

			// Release must succeed even when the caller's context is already cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.rdb, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
				r.logger.Warn().Err(err).Str("key", key).Msg("Failed to release redis lock")
			}
		})
	}, nil
}

// renew extends the lock's TTL until stop is closed or the lock is found lost
func (r *RedisLocker) renew(redisKey, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := r.ttl / 3
	if interval < redisPollInterval {
		interval = redisPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := renewScript.Run(ctx, r.rdb, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				r.logger.Warn().Err(err).Str("key", redisKey).Msg("Failed to renew redis lock")
				continue
			}
			if held == 0 {
				r.logger.Warn().Str("key", redisKey).Msg("Redis lock expired before it was renewed")
				return
			}
		}
	}
}

// Close closes the Redis client
func (r *RedisLocker) Close() error {
	return r.rdb.Close()
}
