package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/errors"
)

// RedisStore is the shared cache tier. It satisfies cache.RemoteStore.
type RedisStore struct {
	config  *config.RemoteCacheConfig
	client  redis.UniversalClient
	logger  *logrus.Logger
	mu      sync.RWMutex
	metrics *storeMetrics
	closed  bool
}

type storeMetrics struct {
	readOps    atomic.Int64
	writeOps   atomic.Int64
	errorCount atomic.Int64
	hitCount   atomic.Int64
	missCount  atomic.Int64
}

// NewRedisStore creates a store; call Connect before use.
func NewRedisStore(cfg *config.RemoteCacheConfig, logger *logrus.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "Redis config cannot be nil")
	}

	if len(cfg.Addrs) == 0 {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "Redis address or cluster addresses are required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &RedisStore{
		config:  cfg,
		logger:  logger,
		metrics: &storeMetrics{},
	}, nil
}

// Connect establishes the connection. A single address yields a plain
// client, several addresses a cluster client.
func (r *RedisStore) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        r.config.Addrs,
		Password:     r.config.Password,
		DB:           r.config.DB,
		DialTimeout:  r.config.DialTimeout,
		ReadTimeout:  r.config.ReadTimeout,
		WriteTimeout: r.config.WriteTimeout,
		PoolSize:     r.config.PoolSize,
		MaxRetries:   1,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "Failed to connect to Redis")
	}

	r.client = client
	r.closed = false

	r.logger.WithFields(logrus.Fields{
		"addrs":      r.config.Addrs,
		"db":         r.config.DB,
		"key_prefix": r.config.KeyPrefix,
	}).Info("Connected to Redis cache")

	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.client == nil {
		r.closed = true
		return nil
	}

	err := r.client.Close()
	r.client = nil
	r.closed = true
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, "CLOSE_FAILED", "Failed to close Redis connection")
	}

	r.logger.Info("Redis cache connection closed")
	return nil
}

// Ping tests the Redis connection
func (r *RedisStore) Ping(ctx context.Context) error {
	client, err := r.activeClient()
	if err != nil {
		return err
	}

	if _, err := client.Ping(ctx).Result(); err != nil {
		r.metrics.errorCount.Add(1)
		return errors.WrapError(err, errors.ErrorTypeStorage, "PING_FAILED", "Redis ping failed")
	}
	return nil
}

// Get fetches a cached payload. A missing key is not an error.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	client, err := r.activeClient()
	if err != nil {
		return nil, false, err
	}

	r.metrics.readOps.Add(1)
	data, err := client.Get(ctx, r.generateKey(key)).Bytes()
	if err == redis.Nil {
		r.metrics.missCount.Add(1)
		return nil, false, nil
	}
	if err != nil {
		r.metrics.errorCount.Add(1)
		return nil, false, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to read from Redis")
	}

	r.metrics.hitCount.Add(1)
	return data, true, nil
}

// Set stores a payload with the given TTL; a zero TTL uses the configured one.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	client, err := r.activeClient()
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = r.config.TTL
	}

	r.metrics.writeOps.Add(1)
	if err := client.Set(ctx, r.generateKey(key), value, ttl).Err(); err != nil {
		r.metrics.errorCount.Add(1)
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to write to Redis")
	}
	return nil
}

// Stats returns operation counters.
func (r *RedisStore) Stats() map[string]int64 {
	return map[string]int64{
		"read_ops":    r.metrics.readOps.Load(),
		"write_ops":   r.metrics.writeOps.Load(),
		"error_count": r.metrics.errorCount.Load(),
		"hit_count":   r.metrics.hitCount.Load(),
		"miss_count":  r.metrics.missCount.Load(),
	}
}

func (r *RedisStore) activeClient() (redis.UniversalClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || r.client == nil {
		return nil, errors.NewStorageError(errors.CodeNotConnected, "Redis not connected")
	}
	return r.client, nil
}

func (r *RedisStore) generateKey(key string) string {
	return r.config.KeyPrefix + key
}
