package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes sync runs per user. Lock blocks until the key is free
// or ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MemoryLocker is an in-process keyed mutex.
type MemoryLocker struct {
	mu    gosync.Mutex
	slots map[string]chan struct{}
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Lock acquires the slot for key.
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once gosync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for lock %q: %w", key, ctx.Err())
	}
}

const (
	redisLockPrefix = "studyflow:sync:"
	redisLockPoll   = 100 * time.Millisecond
)

// unlockScript deletes the lock only if it still holds our token, so an
// expired lock taken over by another process is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease-based lock shared by every process pointed at the
// same Redis. The TTL bounds how long a crashed holder can block others.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker. ttl should exceed the sync timeout.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	return client, nil
}

// Lock polls SETNX until it wins or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(redisLockPoll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquiring lock %q: %w", key, err)
		}
		if ok {
			unlock := func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err()
			}
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %q: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
