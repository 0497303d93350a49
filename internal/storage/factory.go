package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/metrics"
	"github.com/inferloop/patternscope/internal/storage/implementations/file"
	"github.com/inferloop/patternscope/internal/storage/implementations/influxdb"
	"github.com/inferloop/patternscope/internal/storage/implementations/s3"
	"github.com/inferloop/patternscope/internal/storage/implementations/timescaledb"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// SourceCreateFunc opens a connected DataSource.
type SourceCreateFunc func(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (DataSource, error)

// SinkCreateFunc opens a connected ResultSink.
type SinkCreateFunc func(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (ResultSink, error)

// Factory opens sources and sinks by storage type name.
type Factory struct {
	config  config.StorageConfig
	logger  *logrus.Logger
	metrics *metrics.PrometheusMetrics
	mu      sync.RWMutex
	sources map[string]SourceCreateFunc
	sinks   map[string]SinkCreateFunc
}

// NewFactory creates a factory with the built-in adapters registered.
// m may be nil.
func NewFactory(cfg config.StorageConfig, logger *logrus.Logger, m *metrics.PrometheusMetrics) *Factory {
	if logger == nil {
		logger = logrus.New()
	}

	f := &Factory{
		config:  cfg,
		logger:  logger,
		metrics: m,
		sources: make(map[string]SourceCreateFunc),
		sinks:   make(map[string]SinkCreateFunc),
	}

	f.registerDefaults()

	return f
}

// RegisterSource adds or replaces a source type.
func (f *Factory) RegisterSource(storageType string, create SourceCreateFunc) error {
	if storageType == "" || create == nil {
		return errors.NewValidationError(errors.CodeInvalidConfig, "Storage type and create function are required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sources[storageType] = create
	return nil
}

// RegisterSink adds or replaces a sink type.
func (f *Factory) RegisterSink(storageType string, create SinkCreateFunc) error {
	if storageType == "" || create == nil {
		return errors.NewValidationError(errors.CodeInvalidConfig, "Storage type and create function are required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sinks[storageType] = create
	return nil
}

// SupportedSources returns the registered source types, sorted.
func (f *Factory) SupportedSources() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := lo.Keys(f.sources)
	sort.Strings(types)
	return types
}

// SupportedSinks returns the registered sink types, sorted.
func (f *Factory) SupportedSinks() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := lo.Keys(f.sinks)
	sort.Strings(types)
	return types
}

// Source opens the source registered under storageType.
func (f *Factory) Source(ctx context.Context, storageType string) (DataSource, error) {
	f.mu.RLock()
	create, ok := f.sources[storageType]
	f.mu.RUnlock()

	if !ok {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig,
			fmt.Sprintf("Storage type '%s' is not supported as a source", storageType))
	}

	source, err := create(ctx, f.config, f.logger)
	if err != nil {
		return nil, err
	}

	f.logger.WithField("storage_type", storageType).Info("Opened data source")

	return &instrumentedSource{DataSource: source, backend: storageType, metrics: f.metrics}, nil
}

// Sink opens the sink registered under storageType.
func (f *Factory) Sink(ctx context.Context, storageType string) (ResultSink, error) {
	f.mu.RLock()
	create, ok := f.sinks[storageType]
	f.mu.RUnlock()

	if !ok {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig,
			fmt.Sprintf("Storage type '%s' is not supported as a sink", storageType))
	}

	sink, err := create(ctx, f.config, f.logger)
	if err != nil {
		return nil, err
	}

	f.logger.WithField("storage_type", storageType).Info("Opened result sink")

	return &instrumentedSink{ResultSink: sink, backend: storageType, metrics: f.metrics}, nil
}

// Sinks opens every listed sink. On failure the sinks already opened are
// closed.
func (f *Factory) Sinks(ctx context.Context, storageTypes []string) (Sinks, error) {
	sinks := make(Sinks, 0, len(storageTypes))
	for _, storageType := range lo.Uniq(storageTypes) {
		sink, err := f.Sink(ctx, storageType)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func (f *Factory) registerDefaults() {
	f.RegisterSource(constants.StorageTypeFile, func(_ context.Context, cfg config.StorageConfig, logger *logrus.Logger) (DataSource, error) {
		fileCfg := cfg.File
		return file.NewFileStorage(&fileCfg, logger)
	})

	f.RegisterSource(constants.StorageTypeInfluxDB, func(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (DataSource, error) {
		influxCfg := cfg.InfluxDB
		source, err := influxdb.NewInfluxDBSource(&influxCfg, logger)
		if err != nil {
			return nil, err
		}
		if err := source.Connect(ctx); err != nil {
			return nil, err
		}
		return source, nil
	})

	f.RegisterSink(constants.StorageTypeFile, func(_ context.Context, cfg config.StorageConfig, logger *logrus.Logger) (ResultSink, error) {
		fileCfg := cfg.File
		return file.NewFileStorage(&fileCfg, logger)
	})

	f.RegisterSink(constants.StorageTypeTimescaleDB, func(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (ResultSink, error) {
		tsCfg := cfg.TimescaleDB
		sink, err := timescaledb.NewTimescaleDBSink(&tsCfg, logger)
		if err != nil {
			return nil, err
		}
		if err := sink.Connect(ctx); err != nil {
			return nil, err
		}
		return sink, nil
	})

	f.RegisterSink(constants.StorageTypeS3, func(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (ResultSink, error) {
		s3Cfg := cfg.S3
		archive, err := s3.NewS3Archive(&s3Cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := archive.Connect(ctx); err != nil {
			return nil, err
		}
		return archive, nil
	})
}

type instrumentedSource struct {
	DataSource
	backend string
	metrics *metrics.PrometheusMetrics
}

func (s *instrumentedSource) LoadSeries(ctx context.Context, sensorIDs []string, window models.AnalysisWindow) (*models.DetectionRequest, error) {
	start := time.Now()
	req, err := s.DataSource.LoadSeries(ctx, sensorIDs, window)
	s.metrics.RecordStorageOperation(s.backend, "load_series", status(err), time.Since(start))
	return req, err
}

type instrumentedSink struct {
	ResultSink
	backend string
	metrics *metrics.PrometheusMetrics
}

func (s *instrumentedSink) PersistResults(ctx context.Context, result *models.DetectionResult) error {
	start := time.Now()
	err := s.ResultSink.PersistResults(ctx, result)
	s.metrics.RecordStorageOperation(s.backend, "persist_results", status(err), time.Since(start))
	return err
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
