// Package analytics is the library entry point: it runs detection for a set
// of sensors and turns the results into classified patterns.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/cache"
	"github.com/inferloop/patternscope/internal/classification"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/correlation"
	"github.com/inferloop/patternscope/internal/detectors"
	"github.com/inferloop/patternscope/internal/observability/metrics"
	"github.com/inferloop/patternscope/internal/scheduler"
	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// Cache names used in logs, metrics and CacheStats.
const (
	CacheDetection   = "detection"
	CacheStatistics  = "statistics"
	CacheCorrelation = "correlation"
)

// Engine orchestrates detection, statistics, correlation and classification.
// It owns its caches; Close releases them.
type Engine struct {
	config  config.Config
	logger  *logrus.Logger
	metrics *metrics.PrometheusMetrics
	remote  cache.RemoteStore

	detector    detectors.Detector
	scheduler   *scheduler.Scheduler
	correlation *correlation.Analyzer
	classifier  *classification.Classifier

	detections *cache.Cache[sensorDetection]
	statistics *cache.Cache[models.StatisticalMetrics]
	matrices   *cache.Cache[correlation.Matrix]
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records engine activity in m.
func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRemoteCache adds a shared tier behind the in-process caches.
func WithRemoteCache(store cache.RemoteStore) Option {
	return func(e *Engine) {
		e.remote = store
	}
}

// NewEngine validates cfg and wires the engine components.
func NewEngine(cfg config.Config, logger *logrus.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config: cfg.Clone(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.detector, err = detectors.New(e.config.Detection); err != nil {
		return nil, err
	}
	if e.scheduler, err = scheduler.New(e.config.Scheduler, logger, e.metrics); err != nil {
		return nil, err
	}
	if e.classifier, err = classification.NewClassifier(e.config.Classification, logger); err != nil {
		return nil, err
	}

	if e.config.Cache.Enabled {
		cacheConfig := cache.Config{
			Size:      e.config.Cache.Size,
			TTL:       e.config.Cache.TTL,
			RemoteTTL: e.config.Cache.Remote.TTL,
		}
		e.detections = cache.New[sensorDetection](CacheDetection, cacheConfig, e.remote, logger)
		e.statistics = cache.New[models.StatisticalMetrics](CacheStatistics, cacheConfig, e.remote, logger)
		e.matrices = cache.New[correlation.Matrix](CacheCorrelation, cacheConfig, e.remote, logger)
	}

	if e.correlation, err = correlation.NewAnalyzer(e.config.Correlation, e.matrices, logger); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"algorithm":            e.config.Detection.Algorithm,
		"threshold_multiplier": e.config.Detection.ThresholdMultiplier,
		"max_sensors_parallel": e.config.Scheduler.MaxSensorsParallel,
		"cache_enabled":        e.config.Cache.Enabled,
		"remote_cache":         e.remote != nil,
	}).Debug("Analytics engine initialized")

	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() config.Config {
	return e.config.Clone()
}

// DetectPatterns runs detection over every sensor in req. Data-quality
// problems are reported in the result; a failed sensor does not fail the
// others.
func (e *Engine) DetectPatterns(ctx context.Context, req models.DetectionRequest) *models.DetectionResult {
	start := time.Now()
	algorithm := string(e.config.Detection.Algorithm)

	if req.PointCount() == 0 {
		e.metrics.RecordDetectionRun(algorithm, "empty", time.Since(start))
		return failure(req.Window, errors.NewEmptyDataError())
	}
	if err := req.Window.Validate(); err != nil {
		e.metrics.RecordDetectionRun(algorithm, "invalid", time.Since(start))
		return failure(req.Window, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidTimeRange, err.Error()))
	}

	series := normalize(req.Series)

	report, runErr := e.scheduler.Run(ctx, lo.Keys(series), func(ctx context.Context, sensorID string) scheduler.Outcome {
		return e.processSensor(ctx, sensorID, series[sensorID], req)
	})

	result := e.assemble(ctx, req, series, report)
	if runErr != nil {
		result.Success = false
		result.Error = errors.UserMessage(runErr)
	}

	status := "success"
	switch {
	case !result.Success:
		status = "failed"
	case result.PartialSuccess():
		status = "partial"
	}
	e.metrics.RecordDetectionRun(algorithm, status, time.Since(start))
	e.publishCacheStats()

	e.logger.WithFields(logrus.Fields{
		"sensors":            len(series),
		"patterns":           len(result.Patterns),
		"sensors_failed":     result.PerformanceMetrics.SensorsFailed,
		"processing_time_ms": result.PerformanceMetrics.ProcessingTimeMs,
		"cache_hit_rate":     result.PerformanceMetrics.CacheHitRate,
		"status":             status,
	}).Info("Pattern detection completed")

	return result
}

// processSensor runs detection and statistics for one sensor through the
// caches.
func (e *Engine) processSensor(ctx context.Context, sensorID string, points []models.TimeSeriesPoint, req models.DetectionRequest) scheduler.Outcome {
	var outcome scheduler.Outcome
	count := func(hit bool) {
		if hit {
			outcome.CacheHits++
		} else {
			outcome.CacheMisses++
		}
	}

	if !req.Window.IsZero() {
		outcome.OutOfWindow = lo.CountBy(points, func(p models.TimeSeriesPoint) bool {
			return p.HasValidTimestamp() && !req.Window.Contains(p.Timestamp)
		})
	}

	detection, hit, err := lookup(ctx, e.detections, e.detectionKey(points), func() (sensorDetection, error) {
		return e.detect(ctx, points)
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}
	count(hit)
	e.metrics.RecordCacheLookup(CacheDetection, hit)

	minimum := e.config.Detection.MinimumDataPoints
	stats, hit, err := lookup(ctx, e.statistics, statisticsKey(points, minimum), func() (models.StatisticalMetrics, error) {
		return statistics.ComputeSeries(points, minimum)
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}
	count(hit)
	e.metrics.RecordCacheLookup(CacheStatistics, hit)
	summary := stats.Clone()
	outcome.Statistics = &summary

	pattern, ok := buildPattern(patternInput{
		sensorID:   sensorID,
		info:       sensorInfo(sensorID, points, req.Sensors),
		detection:  detection,
		statistics: stats.Clone(),
		window:     req.Window,
		config:     e.config.Detection,
	})
	if ok {
		outcome.Patterns = []models.DetectedPattern{pattern}
	}
	return outcome
}

func (e *Engine) detect(ctx context.Context, points []models.TimeSeriesPoint) (sensorDetection, error) {
	analysis, err := e.detector.Analyze(ctx, points)
	if err != nil {
		return sensorDetection{}, err
	}

	out := sensorDetection{
		DataPoints:   make([]models.PatternDataPoint, len(analysis.Points)),
		Anomalies:    analysis.Anomalies(),
		InvalidCount: analysis.InvalidCount,
	}
	for i, p := range analysis.Points {
		out.DataPoints[i] = models.PatternDataPoint{
			Timestamp:     p.Point.Timestamp,
			Value:         p.Point.Value,
			ExpectedValue: p.Expected,
			Deviation:     p.Deviation,
			IsAnomaly:     analysis.IsAnomaly(p),
		}
	}
	return out, nil
}

// assemble merges the scheduler outcomes into a result, then correlates and
// classifies the patterns.
func (e *Engine) assemble(ctx context.Context, req models.DetectionRequest, series map[string][]models.TimeSeriesPoint, report *scheduler.Report) *models.DetectionResult {
	result := &models.DetectionResult{
		Window:             req.Window,
		StatisticalSummary: make(map[string]models.StatisticalMetrics),
		SensorErrors:       make(map[string]string),
		OutOfWindowPoints:  make(map[string]int),
	}
	perf := &models.PerformanceMetrics{
		ProcessingTimeMs: float64(report.Elapsed.Microseconds()) / 1000,
		BudgetMs:         float64(report.Budget.Microseconds()) / 1000,
		SLABreached:      report.Breached(),
		OveragePercent:   report.OveragePercent(),
		BatchCount:       report.Batches,
	}
	result.PerformanceMetrics = perf
	if report.Breach != nil {
		perf.Warnings = append(perf.Warnings, report.Breach.Message)
	}

	var firstErr error
	for _, o := range report.Outcomes {
		perf.CacheHits += uint64(o.CacheHits)
		perf.CacheMisses += uint64(o.CacheMisses)
		if o.OutOfWindow > 0 {
			result.OutOfWindowPoints[o.SensorID] = o.OutOfWindow
		}
		if o.Err != nil {
			perf.SensorsFailed++
			result.SensorErrors[o.SensorID] = errors.UserMessage(o.Err)
			if firstErr == nil {
				firstErr = o.Err
			}
			entry := e.logger.WithFields(logrus.Fields{
				"sensor_id": o.SensorID,
				"error":     o.Err,
			})
			if errors.IsDataQuality(o.Err) {
				entry.Debug("Sensor skipped on data quality")
			} else {
				entry.Warn("Sensor detection failed")
			}
			continue
		}
		perf.SensorsProcessed++
		if o.Statistics != nil {
			result.StatisticalSummary[o.SensorID] = *o.Statistics
		}
		result.Patterns = append(result.Patterns, o.Patterns...)
	}
	perf.CacheHitRate = cache.HitRate(perf.CacheHits, perf.CacheMisses)

	if perf.SensorsProcessed == 0 {
		if firstErr == nil {
			firstErr = errors.NewEmptyDataError()
		}
		result.Success = false
		result.Error = errors.UserMessage(firstErr)
		return result
	}
	result.Success = true

	if e.config.Correlation.Enabled && len(result.Patterns) > 0 {
		annotated, err := e.correlation.Annotate(ctx, result.Patterns, series, req.Window)
		if err != nil {
			e.logger.WithError(err).Warn("Correlation analysis failed, patterns left unannotated")
			perf.Warnings = append(perf.Warnings, fmt.Sprintf("correlation skipped: %s", errors.UserMessage(err)))
		} else {
			result.Patterns = annotated
		}
	}

	sort.SliceStable(result.Patterns, func(i, j int) bool {
		a, b := result.Patterns[i], result.Patterns[j]
		if a.SensorID != b.SensorID {
			return a.SensorID < b.SensorID
		}
		return a.Timestamp.Before(b.Timestamp)
	})

	for _, p := range result.Patterns {
		e.metrics.RecordPattern(string(p.PatternType), string(p.Severity))
		for _, dp := range p.DataPoints {
			if dp.IsAnomaly {
				e.metrics.RecordAnomaly(string(p.Severity))
			}
		}
	}

	classifications, err := e.ClassifyPatterns(result.Patterns)
	if err != nil {
		e.logger.WithError(err).Error("Classification failed")
		perf.Warnings = append(perf.Warnings, fmt.Sprintf("classification skipped: %s", errors.UserMessage(err)))
	} else {
		result.Classifications = classifications
	}

	return result
}

// ClassifyPatterns classifies patterns, highest risk first.
func (e *Engine) ClassifyPatterns(patterns []models.DetectedPattern) ([]models.ClassificationResult, error) {
	results, err := e.classifier.ClassifyPatterns(patterns)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		e.metrics.RecordClassification(string(r.ClassifiedType), string(r.UrgencyLevel), r.RiskScore)
	}
	return results, nil
}

// CorrelationMatrix correlates every sensor of req with every other one.
func (e *Engine) CorrelationMatrix(ctx context.Context, req models.DetectionRequest) (correlation.Matrix, error) {
	if req.PointCount() == 0 {
		return correlation.Matrix{}, errors.NewEmptyDataError()
	}
	return e.correlation.BuildMatrix(ctx, normalize(req.Series), req.Window)
}

// CacheStats returns the statistics of each enabled cache.
func (e *Engine) CacheStats() map[string]cache.Stats {
	stats := make(map[string]cache.Stats, 3)
	if e.detections != nil {
		stats[CacheDetection] = e.detections.Stats()
	}
	if e.statistics != nil {
		stats[CacheStatistics] = e.statistics.Stats()
	}
	if e.matrices != nil {
		stats[CacheCorrelation] = e.matrices.Stats()
	}
	return stats
}

// Close purges the caches and closes the remote tier.
func (e *Engine) Close() error {
	if e.detections != nil {
		e.detections.Purge()
	}
	if e.statistics != nil {
		e.statistics.Purge()
	}
	if e.matrices != nil {
		e.matrices.Purge()
	}
	if e.remote != nil {
		return e.remote.Close()
	}
	return nil
}

func (e *Engine) publishCacheStats() {
	for name, s := range e.CacheStats() {
		e.metrics.SetCacheHitRate(name, s.HitRate)
	}
}

func (e *Engine) detectionKey(points []models.TimeSeriesPoint) string {
	d := e.config.Detection
	return cache.NewKey(CacheDetection).
		String(string(d.Algorithm)).
		Float(d.ThresholdMultiplier).
		Int(int64(d.MinimumDataPoints)).
		Int(int64(d.WindowSize)).
		Int(int64(d.SeasonalPeriod)).
		Int(int64(d.SeasonalBuckets)).
		String(d.InvalidValuePolicy).
		Float(d.ConfidenceFloor).
		Float(d.WarningRatio).
		Float(d.CriticalRatio).
		Series(points).
		Key()
}

func statisticsKey(points []models.TimeSeriesPoint, minimum int) string {
	return cache.NewKey(CacheStatistics).Int(int64(minimum)).Series(points).Key()
}

// lookup goes through c when caching is enabled.
func lookup[V any](ctx context.Context, c *cache.Cache[V], key string, compute func() (V, error)) (V, bool, error) {
	if c == nil {
		v, err := compute()
		return v, false, err
	}
	return c.GetOrCompute(ctx, key, compute)
}

// normalize copies each series in timestamp order, value as tie breaker, so
// cache keys and results do not depend on input order.
func normalize(in map[string][]models.TimeSeriesPoint) map[string][]models.TimeSeriesPoint {
	out := make(map[string][]models.TimeSeriesPoint, len(in))
	for id, points := range in {
		sorted := append([]models.TimeSeriesPoint(nil), points...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
				return sorted[i].Value < sorted[j].Value
			}
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		out[id] = sorted
	}
	return out
}

// sensorInfo prefers request metadata and falls back to the equipment type
// carried by the points.
func sensorInfo(sensorID string, points []models.TimeSeriesPoint, sensors map[string]models.SensorInfo) models.SensorInfo {
	info := sensors[sensorID]
	if info.EquipmentType == "" {
		for _, p := range points {
			if p.EquipmentType != "" {
				info.EquipmentType = p.EquipmentType
				break
			}
		}
	}
	return info
}

func failure(window models.AnalysisWindow, err error) *models.DetectionResult {
	return &models.DetectionResult{
		Success:            false,
		Window:             window,
		Error:              errors.UserMessage(err),
		PerformanceMetrics: &models.PerformanceMetrics{},
	}
}
