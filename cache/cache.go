// Package cache implements a Redis-backed chart cache.
//
// Captured chart sets are keyed by notebook content digest and stored as
// msgpack blobs with a configurable TTL, so re-extracting an unchanged
// notebook skips cell evaluation entirely.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pulto-io/sift/types"
)

// KeyPrefix namespaces chart cache entries in Redis.
const KeyPrefix = "sift:charts:"

// DefaultTTL is the default entry lifetime.
const DefaultTTL = 24 * time.Hour

// DefaultTimeout is the default per-operation timeout.
const DefaultTimeout = 5 * time.Second

// ErrMiss is returned by Get when no entry exists for the digest.
var ErrMiss = errors.New("chart cache miss")

// Config configures the chart cache.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// TTL is the entry lifetime (default 24h).
	TTL time.Duration
	// Timeout is the per-operation timeout (default 5s).
	Timeout time.Duration
}

// Cache stores chart sets in Redis keyed by notebook digest.
type Cache struct {
	config Config
	client *goredis.Client
}

// New creates a chart cache from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Cache, error) {
	if cfg.URL == "" {
		return nil, errors.New("chart cache requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("chart cache: invalid URL: %w", err)
	}

	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Cache{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Key returns the Redis key for a notebook digest.
func Key(digest string) string {
	return KeyPrefix + digest
}

// Put stores the chart set under the notebook digest with the configured TTL.
func (c *Cache) Put(ctx context.Context, digest string, charts *types.ChartSet) error {
	if digest == "" {
		return errors.New("chart cache: empty digest")
	}

	body, err := msgpack.Marshal(charts)
	if err != nil {
		return fmt.Errorf("chart cache: marshal: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.client.Set(opCtx, Key(digest), body, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("chart cache: set %s: %w", digest, err)
	}
	return nil
}

// Get returns the cached chart set for the notebook digest.
// Returns ErrMiss when no entry exists.
func (c *Cache) Get(ctx context.Context, digest string) (*types.ChartSet, error) {
	if digest == "" {
		return nil, errors.New("chart cache: empty digest")
	}

	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := c.client.Get(opCtx, Key(digest)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("chart cache: get %s: %w", digest, err)
	}

	var charts types.ChartSet
	if err := msgpack.Unmarshal(body, &charts); err != nil {
		return nil, fmt.Errorf("chart cache: unmarshal %s: %w", digest, err)
	}
	return &charts, nil
}

// Invalidate removes the entry for the notebook digest.
// Removing a missing entry is not an error.
func (c *Cache) Invalidate(ctx context.Context, digest string) error {
	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.client.Del(opCtx, Key(digest)).Err(); err != nil {
		return fmt.Errorf("chart cache: del %s: %w", digest, err)
	}
	return nil
}

// Close releases cache resources.
func (c *Cache) Close() error {
	return c.client.Close()
}
