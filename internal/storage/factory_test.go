package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/metrics"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestSupportedTypes(t *testing.T) {
	f := NewFactory(config.DefaultStorageConfig(), quietLogger(), nil)

	assert.Equal(t, []string{"file", "influxdb"}, f.SupportedSources())
	assert.Equal(t, []string{"file", "s3", "timescaledb"}, f.SupportedSinks())
}

func TestUnknownTypes(t *testing.T) {
	f := NewFactory(config.DefaultStorageConfig(), quietLogger(), nil)

	_, err := f.Source(context.Background(), "clickhouse")
	assert.Error(t, err)
	_, err = f.Sink(context.Background(), constants.StorageTypeInfluxDB)
	assert.Error(t, err)
}

func TestFileRoundTripIsInstrumented(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "readings.csv")
	require.NoError(t, os.WriteFile(input, []byte("timestamp,sensor_id,value\n2024-01-15T10:00:00Z,ahu-1,21.5\n"), 0o600))

	cfg := config.DefaultStorageConfig()
	cfg.File.InputPath = input
	cfg.File.OutputPath = filepath.Join(dir, "result.json")

	m, err := metrics.NewPrometheusMetrics(metrics.DefaultPrometheusConfig(), quietLogger())
	require.NoError(t, err)
	f := NewFactory(cfg, quietLogger(), m)
	ctx := context.Background()

	source, err := f.Source(ctx, constants.StorageTypeFile)
	require.NoError(t, err)
	defer source.Close()
	req, err := source.LoadSeries(ctx, nil, models.AnalysisWindow{})
	require.NoError(t, err)
	assert.Len(t, req.Series["ahu-1"], 1)

	sinks, err := f.Sinks(ctx, []string{constants.StorageTypeFile, constants.StorageTypeFile})
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	require.NoError(t, sinks.PersistResults(ctx, &models.DetectionResult{Success: true}))
	require.NoError(t, sinks.Close())

	_, err = os.Stat(cfg.File.OutputPath)
	assert.NoError(t, err)

	count, err := testutil.GatherAndCount(m.GetRegistry(), "patternscope_storage_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

type stubSink struct {
	err    error
	calls  int
	closed bool
}

func (s *stubSink) PersistResults(context.Context, *models.DetectionResult) error {
	s.calls++
	return s.err
}

func (s *stubSink) Close() error {
	s.closed = true
	return nil
}

func TestSinksAttemptsEverySink(t *testing.T) {
	failing := &stubSink{err: errors.New("disk full")}
	ok := &stubSink{}
	sinks := Sinks{failing, ok}

	err := sinks.PersistResults(context.Background(), &models.DetectionResult{})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, ok.calls)

	require.NoError(t, sinks.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestSinksClosesOpenedOnFailure(t *testing.T) {
	opened := &stubSink{}
	f := NewFactory(config.DefaultStorageConfig(), quietLogger(), nil)
	require.NoError(t, f.RegisterSink("memory", func(context.Context, config.StorageConfig, *logrus.Logger) (ResultSink, error) {
		return opened, nil
	}))
	require.NoError(t, f.RegisterSink("broken", func(context.Context, config.StorageConfig, *logrus.Logger) (ResultSink, error) {
		return nil, errors.New("unreachable")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.Sinks(ctx, []string{"memory", "broken"})
	assert.Error(t, err)
	assert.True(t, opened.closed)
}
