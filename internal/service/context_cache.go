package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContextCache maps an instruction fingerprint to the name of a primed provider
// context. It is a performance hint only: dropping an entry is always safe.
type ContextCache interface {
	// GetOrCreate returns the cached name for fingerprint, calling create when
	// there is none. An empty name means "call the model uncached".
	GetOrCreate(ctx context.Context, fingerprint string, create func(ctx context.Context) (string, error)) (string, error)
	// Invalidate forgets fingerprint and returns the name it pointed to, if any
	Invalidate(ctx context.Context, fingerprint string) (string, error)
}

// NoopContextCache never caches
type NoopContextCache struct{}

func (NoopContextCache) GetOrCreate(ctx context.Context, fingerprint string, create func(ctx context.Context) (string, error)) (string, error) {
	return "", nil
}

func (NoopContextCache) Invalidate(ctx context.Context, fingerprint string) (string, error) {
	return "", nil
}

type memoryEntry struct {
	name      string
	refreshAt time.Time
}

// MemoryContextCache keeps entries in process until their refresh deadline.
// Concurrent misses for one fingerprint share a single create call.
type MemoryContextCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	refresh time.Duration
	group   singleflight.Group
	now     func() time.Time
}

// NewMemoryContextCache creates an in-process cache. Entries are recreated after refresh.
func NewMemoryContextCache(refresh time.Duration) *MemoryContextCache {
	return &MemoryContextCache{
		entries: make(map[string]memoryEntry),
		refresh: refresh,
		now:     time.Now,
	}
}

func (c *MemoryContextCache) GetOrCreate(ctx context.Context, fingerprint string, create func(ctx context.Context) (string, error)) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[fingerprint]; ok && c.now().Before(e.refreshAt) {
		c.mu.Unlock()
		return e.name, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		name, err := create(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.entries[fingerprint] = memoryEntry{name: name, refreshAt: c.now().Add(c.refresh)}
		c.mu.Unlock()
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *MemoryContextCache) Invalidate(ctx context.Context, fingerprint string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint]
	if !ok {
		return "", nil
	}
	delete(c.entries, fingerprint)
	return e.name, nil
}

const redisContextKeyPrefix = "propertyleads:model-context:"

// RedisContextCache shares entries between replicas; each entry lives for the
// refresh period
type RedisContextCache struct {
	client  *redis.Client
	refresh time.Duration
	group   singleflight.Group
}

// NewRedisContextCache creates a cache backed by client
func NewRedisContextCache(client *redis.Client, refresh time.Duration) *RedisContextCache {
	return &RedisContextCache{client: client, refresh: refresh}
}

// NewRedisClient connects to the Redis server at url
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisContextCache) GetOrCreate(ctx context.Context, fingerprint string, create func(ctx context.Context) (string, error)) (string, error) {
	key := redisContextKeyPrefix + fingerprint

	name, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read model context: %w", err)
	}

	v, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		name, err := create(ctx)
		if err != nil {
			return "", err
		}
		if name != "" {
			if err := c.client.Set(ctx, key, name, c.refresh).Err(); err != nil {
				return "", fmt.Errorf("failed to store model context: %w", err)
			}
		}
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *RedisContextCache) Invalidate(ctx context.Context, fingerprint string) (string, error) {
	name, err := c.client.GetDel(ctx, redisContextKeyPrefix+fingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to drop model context: %w", err)
	}
	return name, nil
}
