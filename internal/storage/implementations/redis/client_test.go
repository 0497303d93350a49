package redis

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/cache"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/errors"
)

var _ cache.RemoteStore = (*RedisStore)(nil)

func TestNewRedisStore(t *testing.T) {
	cfg := &config.RemoteCacheConfig{
		Addrs:     []string{"localhost:6379"},
		KeyPrefix: "patternscope:",
	}

	logger := logrus.New()
	store, err := NewRedisStore(cfg, logger)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, cfg, store.config)
	assert.Equal(t, logger, store.logger)
}

func TestNewRedisStoreInvalidConfig(t *testing.T) {
	_, err := NewRedisStore(nil, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	_, err = NewRedisStore(&config.RemoteCacheConfig{}, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address or cluster addresses are required")
}

func TestRedisStoreGenerateKey(t *testing.T) {
	store, err := NewRedisStore(&config.RemoteCacheConfig{Addrs: []string{"localhost:6379"}, KeyPrefix: "test:"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test:stats:abc", store.generateKey("stats:abc"))

	store, err = NewRedisStore(&config.RemoteCacheConfig{Addrs: []string{"localhost:6379"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stats:abc", store.generateKey("stats:abc"))
}

func TestRedisStoreNotConnected(t *testing.T) {
	store, err := NewRedisStore(&config.RemoteCacheConfig{Addrs: []string{"localhost:6379"}}, nil)
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), errors.CodeNotConnected)

	err = store.Set(context.Background(), "k", []byte("v"), time.Minute)
	require.Error(t, err)

	assert.NoError(t, store.Close())
}

func TestRedisStoreConnectUnreachable(t *testing.T) {
	store, err := NewRedisStore(&config.RemoteCacheConfig{
		Addrs:       []string{"127.0.0.1:1"},
		DialTimeout: 200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = store.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), errors.CodeConnectionFailed)
}

func TestRedisStoreIntegration(t *testing.T) {
	t.Skip("Integration test - requires running Redis instance")

	store, err := NewRedisStore(&config.RemoteCacheConfig{
		Addrs:     []string{"localhost:6379"},
		DB:        15,
		KeyPrefix: "patternscope-test:",
		TTL:       time.Minute,
	}, logrus.New())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Connect(ctx))
	defer store.Close()

	require.NoError(t, store.Set(ctx, "k", []byte(`{"mean":1}`), 0))

	data, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"mean":1}`, string(data))

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}
