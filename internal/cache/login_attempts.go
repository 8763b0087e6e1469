package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginAttemptsPrefix = "login_attempts:"

// LoginAttempts counts failed logins per key inside a rolling cooldown window.
type LoginAttempts interface {
	// Attempts returns the failure count and how long until the window resets.
	Attempts(ctx context.Context, key string) (int64, time.Duration, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type RedisLoginAttempts struct {
	client *redis.Client
	window time.Duration
}

func NewRedisLoginAttempts(client *redis.Client, window time.Duration) *RedisLoginAttempts {
	return &RedisLoginAttempts{client: client, window: window}
}

func (r *RedisLoginAttempts) Attempts(ctx context.Context, key string) (int64, time.Duration, error) {
	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, loginAttemptsPrefix+key)
	ttl := pipe.TTL(ctx, loginAttemptsPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, err
	}
	n, err := get.Int64()
	if err == redis.Nil {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return n, ttl.Val(), nil
}

func (r *RedisLoginAttempts) Fail(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, loginAttemptsPrefix+key)
	pipe.Expire(ctx, loginAttemptsPrefix+key, r.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisLoginAttempts) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, loginAttemptsPrefix+key).Err()
}

type attemptWindow struct {
	count   int64
	expires time.Time
}

// MemoryLoginAttempts is the single-instance fallback.
type MemoryLoginAttempts struct {
	mu      sync.Mutex
	entries map[string]attemptWindow
	window  time.Duration
	now     func() time.Time
}

func NewMemoryLoginAttempts(window time.Duration) *MemoryLoginAttempts {
	return &MemoryLoginAttempts{entries: make(map[string]attemptWindow), window: window, now: time.Now}
}

func (m *MemoryLoginAttempts) Attempts(_ context.Context, key string) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	now := m.now()
	if !ok || !now.Before(e.expires) {
		delete(m.entries, key)
		return 0, 0, nil
	}
	return e.count, e.expires.Sub(now), nil
}

func (m *MemoryLoginAttempts) Fail(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := m.entries[key]
	if !now.Before(e.expires) {
		e.count = 0
	}
	e.count++
	e.expires = now.Add(m.window)
	m.entries[key] = e
	return nil
}

func (m *MemoryLoginAttempts) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
