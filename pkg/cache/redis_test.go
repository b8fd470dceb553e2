package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis creates a test Redis client. Unit tests skip when no
// local Redis is available; tests/integration covers the containerized
// path.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil, zerolog.Nop())
}

func TestRedisStore_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, zerolog.Nop())
	ctx := context.Background()

	key := Key{Namespace: NamespaceSearch, ID: "daft punk"}
	payload := []byte(`{"results":[{"video_id":"abc123"}]}`)

	if err := store.Set(ctx, key, payload, 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Data) != string(payload) {
		t.Errorf("Data = %s, want %s", entry.Data, payload)
	}
	if entry.Version == 0 {
		t.Error("Version should be non-zero")
	}
}

func TestRedisStore_Get_CacheMiss(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, zerolog.Nop())

	_, err := store.Get(context.Background(), Key{Namespace: NamespaceSearch, ID: "nonexistent"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, zerolog.Nop())
	ctx := context.Background()

	key := Key{Namespace: NamespaceStreamURL, ID: "dQw4w9WgXcQ"}
	if err := store.Set(ctx, key, []byte(`{"url":"https://example.test/a.m3u8"}`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after delete = %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_ZeroTTLNotStored(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, zerolog.Nop())
	ctx := context.Background()

	key := Key{Namespace: NamespaceComments, ID: "vid"}
	if err := store.Set(ctx, key, []byte(`x`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get = %v, want ErrCacheMiss", err)
	}
}
