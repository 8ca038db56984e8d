// Package cache is the cache-aside layer in front of the Store. Every
// operation fails open: a Redis outage degrades latency, never
// correctness, so callers always have a Store fallback available.
//
// Grounded on the teacher's RedisRepository (db/repository/redis.go),
// generalized from its ad-hoc "cache:"-prefixed key/value helpers to the
// fixed titan:{kind}:{id_token} / titan:list:{kind}:{filter_hash}:{cursor}
// key schema this domain needs, and its connection-string handling from
// db/dragonflydb.go's Redis-protocol-compatible dial pattern.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned by every method when Redis cannot be
// reached. Callers MUST treat it as a cache miss and fall back to the
// Store rather than surfacing it to an HTTP client.
var ErrUnavailable = errors.New("cache: unavailable")

// Default TTLs per spec §4.4.
const (
	DefaultEntityTTL = 600 * time.Second
	DefaultListTTL   = 60 * time.Second
)

// Cache wraps a redis.Client (or anything satisfying the same
// interface, e.g. a miniredis-backed client in tests).
type Cache struct {
	client redis.UniversalClient
}

// New parses a redis:// URL and opens a client, verifying connectivity.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewWithClient wraps an already-constructed client, used by tests that
// run against miniredis.
func NewWithClient(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping reports whether Redis is reachable, used by /health/ready.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}

// EntityKey builds the titan:{kind}:{id_token} key for a single entity.
func EntityKey(kind, idToken string) string {
	return fmt.Sprintf("titan:%s:%s", kind, idToken)
}

// ListKey builds the titan:list:{kind}:{filter_hash}:{cursor} key for a
// list page.
func ListKey(kind, filterHash, cursor string) string {
	return fmt.Sprintf("titan:list:%s:%s:%s", kind, filterHash, cursor)
}

// Get returns the cached bytes for key, or ErrUnavailable on a Redis
// fault, or redis.Nil-derived miss (nil, nil) on a genuine cache miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrUnavailable
	}
	return val, nil
}

// Set stores bytes under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}

// DeletePrefix removes every key starting with prefix, used to
// invalidate all list pages for a kind after a mutation. It scans in
// batches and pipelines the deletes so a large key space does not block
// Redis with a single huge command.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 256).Iterator()

	pipe := c.client.Pipeline()
	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		_, err := pipe.Exec(ctx)
		pending = 0
		return err
	}

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		pending++
		if pending >= 256 {
			if err := flush(); err != nil {
				return ErrUnavailable
			}
		}
	}
	if err := iter.Err(); err != nil {
		return ErrUnavailable
	}
	if err := flush(); err != nil {
		return ErrUnavailable
	}
	return nil
}

// Scan lists up to limit keys starting with prefix.
func (c *Cache) Scan(ctx context.Context, prefix string, limit int64) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, prefix+"*", limit).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if int64(len(keys)) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, ErrUnavailable
	}
	return keys, nil
}
