// Package worker runs pattern detection on a schedule: load the lookback
// window from a data source, detect, then hand the result to the sinks.
package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/metrics"
	"github.com/inferloop/patternscope/internal/storage"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// JobType labels detection runs in the worker metrics.
const JobType = "detection"

// Job status labels.
const (
	StatusSuccess = "success"
	StatusNoData  = "no_data"
	StatusFailed  = "failed"
)

// Detector is the engine surface a job needs.
type Detector interface {
	DetectPatterns(ctx context.Context, req models.DetectionRequest) *models.DetectionResult
}

// DetectionJob is one configured detection pass.
type DetectionJob struct {
	config   config.WorkerConfig
	source   storage.DataSource
	sink     storage.ResultSink
	detector Detector
	metrics  *metrics.PrometheusMetrics
	logger   *logrus.Logger
	now      func() time.Time

	completedRuns int64
	failedRuns    int64
}

func NewDetectionJob(cfg config.WorkerConfig, source storage.DataSource, sink storage.ResultSink, detector Detector, m *metrics.PrometheusMetrics, logger *logrus.Logger) (*DetectionJob, error) {
	if source == nil || detector == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "worker requires a data source and a detector")
	}
	if cfg.Lookback <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "worker.lookback must be positive")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if sink == nil {
		sink = storage.Sinks{}
	}

	return &DetectionJob{
		config:   cfg,
		source:   source,
		sink:     sink,
		detector: detector,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// RunOnce detects patterns over [now-lookback, now]. A run whose data is
// unusable is logged and not persisted; source and sink failures are
// returned.
func (j *DetectionJob) RunOnce(ctx context.Context) (*models.DetectionResult, error) {
	start := j.now()
	end := start.UTC()
	window := models.AnalysisWindow{Start: end.Add(-j.config.Lookback), End: end}

	logger := j.logger.WithFields(logrus.Fields{
		"window_start": window.Start.Format(time.RFC3339),
		"window_end":   window.End.Format(time.RFC3339),
		"sensors":      len(j.config.SensorIDs),
	})

	req, err := j.source.LoadSeries(ctx, j.config.SensorIDs, window)
	if err != nil {
		j.finish(StatusFailed, start)
		logger.WithError(err).Error("Failed to load sensor series")
		return nil, err
	}

	result := j.detector.DetectPatterns(ctx, *req)
	if !result.Success {
		j.finish(StatusNoData, start)
		logger.WithField("reason", result.Error).Warn("Detection run produced no result")
		return result, nil
	}

	if err := j.sink.PersistResults(ctx, result); err != nil {
		j.finish(StatusFailed, start)
		logger.WithError(err).Error("Failed to persist detection result")
		return result, err
	}

	j.finish(StatusSuccess, start)
	logger.WithFields(logrus.Fields{
		"points":          req.PointCount(),
		"patterns":        len(result.Patterns),
		"classifications": len(result.Classifications),
		"sensor_errors":   len(result.SensorErrors),
		"duration":        time.Since(start).String(),
	}).Info("Detection run completed")

	return result, nil
}

func (j *DetectionJob) finish(status string, start time.Time) {
	if status == StatusFailed {
		atomic.AddInt64(&j.failedRuns, 1)
	} else {
		atomic.AddInt64(&j.completedRuns, 1)
	}
	j.metrics.RecordWorkerJob(JobType, status, time.Since(start))
}

func (j *DetectionJob) CompletedRuns() int64 {
	return atomic.LoadInt64(&j.completedRuns)
}

func (j *DetectionJob) FailedRuns() int64 {
	return atomic.LoadInt64(&j.failedRuns)
}
