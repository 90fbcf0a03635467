package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultSweepLockTTL = 30 * time.Second

// releaseScript deletes the lock only while it still holds our owner token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepLock implements ports.SweepLock with SET NX and an owner token, so
// only one instance expires payment tokens per tick.
type SweepLock struct {
	client *goredis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	owner string
}

// NewSweepLock creates a lock on key. A non-positive ttl uses the default.
func NewSweepLock(client *goredis.Client, key string, ttl time.Duration) (*SweepLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for sweep lock")
	}
	if key == "" {
		return nil, errors.New("sweep lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultSweepLockTTL
	}
	return &SweepLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *SweepLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis sweep lock setnx: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.owner = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees the lock if this instance still owns it.
func (l *SweepLock) Release(ctx context.Context) error {
	l.mu.Lock()
	owner := l.owner
	l.owner = ""
	l.mu.Unlock()

	if owner == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, owner).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis sweep lock release: %w", err)
	}
	return nil
}
