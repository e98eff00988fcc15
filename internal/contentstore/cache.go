package contentstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/arclight-oj/judge/internal/ids"
)

// CachedBlobStore wraps a BlobStore with a Redis read-through cache:
// Fetch checks Redis first, falling back to the underlying store on a
// miss and populating Redis with the result. Register and Remove write
// through to both. Grounded on nova's internal/cache.RedisCache +
// internal/cache/tiered.go's L1/L2 composition, specialised here to a
// single Redis layer in front of a BlobStore rather than a generic
// byte-slice cache.
type CachedBlobStore struct {
	backend BlobStore
	client  *redis.Client
	prefix  string
	ttl     time.Duration
}

// CachedBlobStoreConfig configures a CachedBlobStore.
type CachedBlobStoreConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string        // default: "judge:blob:"
	TTL       time.Duration // default: 1 hour
}

// NewCachedBlobStore wraps backend with a Redis read-through layer.
func NewCachedBlobStore(backend BlobStore, cfg CachedBlobStoreConfig) *CachedBlobStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "judge:blob:"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &CachedBlobStore{backend: backend, client: client, prefix: prefix, ttl: ttl}
}

func (c *CachedBlobStore) key(id ids.ResourceId) string {
	return c.prefix + id.String()
}

func (c *CachedBlobStore) Register(ctx context.Context, id ids.ResourceId, content string) error {
	if err := c.backend.Register(ctx, id, content); err != nil {
		return err
	}
	// Best-effort: a cache-population failure must not fail registration.
	_ = c.client.Set(ctx, c.key(id), content, c.ttl).Err()
	return nil
}

func (c *CachedBlobStore) Fetch(ctx context.Context, id ids.ResourceId) (string, error) {
	cached, err := c.client.Get(ctx, c.key(id)).Result()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		// Redis itself is unhealthy; fall through to the backend rather
		// than failing the fetch outright.
	}

	content, err := c.backend.Fetch(ctx, id)
	if err != nil {
		return "", err
	}
	_ = c.client.Set(ctx, c.key(id), content, c.ttl).Err()
	return content, nil
}

func (c *CachedBlobStore) Remove(ctx context.Context, id ids.ResourceId) error {
	if err := c.backend.Remove(ctx, id); err != nil {
		return err
	}
	_ = c.client.Del(ctx, c.key(id)).Err()
	return nil
}

func (c *CachedBlobStore) Close() error {
	return c.client.Close()
}
