package cache

import (
	"context"
	"sync"
	"time"

	"github.com/aeginies/backend/internal/domain"
)

// entry is one cached payload with its expiry
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is a thread-safe in-memory cache with TTL support.
// Values are copied in and out so callers can reuse their buffers.
type MemoryCache struct {
	data  map[string]entry
	mutex sync.RWMutex
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a new in-memory cache and starts its janitor, which drops
// expired entries every sweep interval until Close is called.
func NewMemoryCache(sweep time.Duration) *MemoryCache {
	if sweep <= 0 {
		sweep = 10 * time.Minute
	}
	c := &MemoryCache{
		data: make(map[string]entry),
		now:  time.Now,
		done: make(chan struct{}),
	}
	go c.janitor(sweep)
	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.data[key]
	if !ok || e.expired(c.now()) {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value in the cache with TTL; a non-positive ttl never expires
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Unix(1<<62, 0)
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[key] = entry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Exists checks if a key exists in the cache and is not expired
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.data[key]
	return ok && !e.expired(c.now()), nil
}

// Size returns the current number of entries, expired ones included until swept
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Close stops the janitor
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *MemoryCache) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, e := range c.data {
		if e.expired(now) {
			delete(c.data, key)
		}
	}
}
