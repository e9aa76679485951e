package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aeginies/backend/internal/domain"
	"github.com/google/uuid"
)

// newRedisTestCache connects to INIES_TEST_REDIS_URL, skipping when it is unset
func newRedisTestCache(t *testing.T) *RedisCache {
	t.Helper()
	url := os.Getenv("INIES_TEST_REDIS_URL")
	if url == "" {
		t.Skip("INIES_TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := NewRedisCache(ctx, url, "inies-test:"+uuid.NewString()+":")
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache_RoundTrip(t *testing.T) {
	cache := newRedisTestCache(t)
	ctx := context.Background()

	t.Run("missing key is a cache miss", func(t *testing.T) {
		_, err := cache.Get(ctx, "product:404")
		if !errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("Get() error = %v, want ErrCacheMiss", err)
		}
		exists, err := cache.Exists(ctx, "product:404")
		if err != nil || exists {
			t.Errorf("Exists() = %v, %v, want false, nil", exists, err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		value := []byte(`{"id":"42","name":"Plaque de plâtre"}`)
		if err := cache.Set(ctx, "product:42", value, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		t.Cleanup(func() { cache.Delete(ctx, "product:42") })

		got, err := cache.Get(ctx, "product:42")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != string(value) {
			t.Errorf("Get() = %s, want %s", got, value)
		}
		exists, err := cache.Exists(ctx, "product:42")
		if err != nil || !exists {
			t.Errorf("Exists() = %v, %v, want true, nil", exists, err)
		}
	})

	t.Run("delete removes the key", func(t *testing.T) {
		if err := cache.Set(ctx, "product:7", []byte("x"), 0); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := cache.Delete(ctx, "product:7"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := cache.Get(ctx, "product:7"); !errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("expires after ttl", func(t *testing.T) {
		if err := cache.Set(ctx, "product:8", []byte("x"), 100*time.Millisecond); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		time.Sleep(300 * time.Millisecond)
		if _, err := cache.Get(ctx, "product:8"); !errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("Get() after ttl error = %v, want ErrCacheMiss", err)
		}
	})
}
