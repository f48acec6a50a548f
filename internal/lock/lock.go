// Package lock provides short-lived mutual exclusion keyed by string.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrLocked is returned when the key is held by someone else.
var ErrLocked = errors.New("lock is held")

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by another worker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every API instance pointing at the same Redis.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed locker. Keys are namespaced with "lock:".
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, prefix: "lock:"}
}

// Acquire takes key for at most ttl. The returned release func is safe to call once.
func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	redisKey := l.prefix + key

	ok, err := l.rdb.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("release lock")
		}
	}, nil
}

// Local is an in-process locker for single-instance deployments without Redis.
type Local struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time)}
}

func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, ErrLocked
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key].Equal(expiry) {
				delete(l.held, key)
			}
		})
	}, nil
}
