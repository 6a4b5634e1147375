package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RebuildLock serializes dataset rebuilds. TryAcquire returns false when
// another rebuild already holds the lock; Release frees it.
type RebuildLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisRebuildLock implements RebuildLock with a Redis SETNX lease. This is
// suitable for distributed deployments where multiple instances may receive
// rebuild triggers. The TTL bounds how long a crashed holder can block
// subsequent rebuilds.
type RedisRebuildLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// releaseScript deletes the lease only when it still belongs to the caller.
// Without the ownership check, a holder whose TTL expired mid-rebuild would
// delete the lease another instance has since acquired.
var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
	return redis.call('del', KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisRebuildLock creates a new Redis-backed rebuild lock
func NewRedisRebuildLock(cfg RedisConfig, ttl time.Duration) (*RedisRebuildLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRebuildLockWithClient(client, ttl), nil
}

// NewRedisRebuildLockWithClient creates a lock with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisRebuildLockWithClient(client *redis.Client, ttl time.Duration) *RedisRebuildLock {
	return &RedisRebuildLock{
		client: client,
		key:    "dataset:rebuild:lock",
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lease. Uses SETNX with TTL in a single
// atomic operation; true means this caller now holds the lock. The lease
// value is a token unique to this acquisition, so Release can verify
// ownership before deleting.
func (l *RedisRebuildLock) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire rebuild lock: %w", err)
	}
	if acquired {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return acquired, nil
}

// Release frees the lease if this instance still owns it. Releasing an
// expired or stolen lease is a no-op rather than an error.
func (l *RedisRebuildLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release rebuild lock: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisRebuildLock) Close() error {
	return l.client.Close()
}

// LocalRebuildLock implements RebuildLock with an in-process mutex. Used when
// Redis is not configured; sufficient for single-instance deployments.
type LocalRebuildLock struct {
	mu sync.Mutex
}

// NewLocalRebuildLock creates a new in-process rebuild lock
func NewLocalRebuildLock() *LocalRebuildLock {
	return &LocalRebuildLock{}
}

// TryAcquire takes the lock without blocking.
func (l *LocalRebuildLock) TryAcquire(ctx context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

// Release frees the lock.
func (l *LocalRebuildLock) Release(ctx context.Context) error {
	l.mu.Unlock()
	return nil
}

var (
	_ RebuildLock = (*RedisRebuildLock)(nil)
	_ RebuildLock = (*LocalRebuildLock)(nil)
)
