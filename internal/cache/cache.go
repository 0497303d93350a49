package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/inferloop/patternscope/pkg/errors"
)

// RemoteStore is an optional shared tier behind the in-process cache.
// Get reports found=false for a missing key; any error is a backend failure.
type RemoteStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Config configures a Cache.
type Config struct {
	Size      int           `json:"size" yaml:"size"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
	RemoteTTL time.Duration `json:"remote_ttl" yaml:"remote_ttl"`
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Cache memoizes computed values by content key with LRU eviction and a TTL.
// It is safe for concurrent use. Cached values are shared between callers
// and must not be mutated.
type Cache[V any] struct {
	name   string
	config Config
	lru    *expirable.LRU[string, V]
	remote RemoteStore
	group  singleflight.Group
	logger *logrus.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache. remote may be nil.
func New[V any](name string, config Config, remote RemoteStore, logger *logrus.Logger) *Cache[V] {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Size <= 0 {
		config.Size = 1000
	}
	if config.RemoteTTL <= 0 {
		config.RemoteTTL = config.TTL
	}
	return &Cache[V]{
		name:   name,
		config: config,
		lru:    expirable.NewLRU[string, V](config.Size, nil, config.TTL),
		remote: remote,
		logger: logger,
	}
}

// Get returns the locally cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	value, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

// Set stores value locally.
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. Concurrent misses on the same key share one computation. Remote
// tier failures are logged and bypassed; compute errors are never cached.
// hit reports whether the value came from either cache tier.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute func() (V, error)) (value V, hit bool, err error) {
	if value, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return value, true, nil
	}

	if value, ok := c.getRemote(ctx, key); ok {
		c.lru.Add(key, value)
		c.hits.Add(1)
		return value, true, nil
	}

	c.misses.Add(1)
	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		computed, err := compute()
		if err != nil {
			return computed, err
		}
		c.lru.Add(key, computed)
		c.setRemote(ctx, key, computed)
		return computed, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return result.(V), false, nil
}

func (c *Cache[V]) getRemote(ctx context.Context, key string) (V, bool) {
	var value V
	if c.remote == nil {
		return value, false
	}

	data, found, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logUnavailable(errors.NewCacheUnavailableError(err, "get"), key)
		return value, false
	}
	if !found {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.WithFields(logrus.Fields{
			"cache": c.name,
			"key":   key,
			"error": err,
		}).Warn("Discarding undecodable remote cache entry")
		return value, false
	}
	return value, true
}

func (c *Cache[V]) setRemote(ctx context.Context, key string, value V) {
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"cache": c.name,
			"error": err,
		}).Warn("Failed to encode value for remote cache")
		return
	}
	if err := c.remote.Set(ctx, key, data, c.config.RemoteTTL); err != nil {
		c.logUnavailable(errors.NewCacheUnavailableError(err, "set"), key)
	}
}

func (c *Cache[V]) logUnavailable(err error, key string) {
	c.logger.WithFields(logrus.Fields{
		"cache": c.name,
		"key":   key,
		"error": err,
	}).Warn("Remote cache unavailable, computing directly")
}

// Remove evicts key from the local tier.
func (c *Cache[V]) Remove(key string) {
	c.lru.Remove(key)
}

// Len returns the number of live local entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge drops every local entry. Counters are kept.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Stats returns hit/miss counters and the hit rate.
func (c *Cache[V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Size:    c.lru.Len(),
		HitRate: HitRate(hits, misses),
	}
}

// HitRate returns hits/(hits+misses), or 0 when nothing was looked up.
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
