package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/pkg/constants"
)

// PrometheusMetrics collects detection metrics on a private registry.
// All Record and Set methods are safe on a nil receiver, so components can
// run without metrics.
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	server   *http.Server
	config   *PrometheusConfig
	mu       sync.RWMutex

	// Detection metrics
	detectionRunsTotal     *prometheus.CounterVec
	detectionDuration      *prometheus.HistogramVec
	sensorsProcessedTotal  *prometheus.CounterVec
	slaBreachesTotal       prometheus.Counter
	slaOverageRatio        prometheus.Histogram
	anomaliesTotal         *prometheus.CounterVec
	patternsTotal          *prometheus.CounterVec
	classificationsTotal   *prometheus.CounterVec
	riskScore              prometheus.Histogram
	cacheLookupsTotal      *prometheus.CounterVec
	cacheHitRate           *prometheus.GaugeVec

	// Surrounding process metrics
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	storageOperationsTotal *prometheus.CounterVec
	storageDuration        *prometheus.HistogramVec
	workerJobsTotal        *prometheus.CounterVec
	workerJobDuration      *prometheus.HistogramVec
	errorRate              *prometheus.CounterVec
}

// PrometheusConfig configures Prometheus metrics
type PrometheusConfig struct {
	Enabled   bool   `json:"enabled"`
	Port      int    `json:"port"`
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(config *PrometheusConfig, logger *logrus.Logger) (*PrometheusMetrics, error) {
	if config == nil {
		config = DefaultPrometheusConfig()
	}

	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}

	pm.initializeMetrics()

	if err := pm.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return pm, nil
}

// Start serves the registry on its own port, for processes without an HTTP
// router such as the worker.
func (pm *PrometheusMetrics) Start(ctx context.Context) error {
	if !pm.config.Enabled {
		pm.logger.Info("Prometheus metrics disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(pm.config.Path, pm.Handler())

	pm.mu.Lock()
	pm.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", pm.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := pm.server
	pm.mu.Unlock()

	pm.logger.WithFields(logrus.Fields{
		"port": pm.config.Port,
		"path": pm.config.Path,
	}).Info("Starting Prometheus metrics server")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			pm.logger.WithError(err).Error("Prometheus metrics server error")
		}
	}()

	return nil
}

// Stop stops the Prometheus metrics server
func (pm *PrometheusMetrics) Stop(ctx context.Context) error {
	pm.mu.RLock()
	server := pm.server
	pm.mu.RUnlock()

	if server == nil {
		return nil
	}

	pm.logger.Info("Stopping Prometheus metrics server")
	return server.Shutdown(ctx)
}

// Handler exposes the registry for mounting on an existing router.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Detection Metrics
func (pm *PrometheusMetrics) RecordDetectionRun(algorithm, status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.detectionRunsTotal.WithLabelValues(algorithm, status).Inc()
	pm.detectionDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) RecordSensorProcessed(status string) {
	if pm == nil {
		return
	}
	pm.sensorsProcessedTotal.WithLabelValues(status).Inc()
}

// RecordSLABreach counts a run that exceeded its budget. overage is the
// fractional overage, 0.25 for 25% over budget.
func (pm *PrometheusMetrics) RecordSLABreach(overage float64) {
	if pm == nil {
		return
	}
	pm.slaBreachesTotal.Inc()
	pm.slaOverageRatio.Observe(overage)
}

func (pm *PrometheusMetrics) RecordAnomaly(severity string) {
	if pm == nil {
		return
	}
	pm.anomaliesTotal.WithLabelValues(severity).Inc()
}

func (pm *PrometheusMetrics) RecordPattern(patternType, severity string) {
	if pm == nil {
		return
	}
	pm.patternsTotal.WithLabelValues(patternType, severity).Inc()
}

func (pm *PrometheusMetrics) RecordClassification(classifiedType, urgency string, risk float64) {
	if pm == nil {
		return
	}
	pm.classificationsTotal.WithLabelValues(classifiedType, urgency).Inc()
	pm.riskScore.Observe(risk)
}

// Cache Metrics
func (pm *PrometheusMetrics) RecordCacheLookup(cacheName string, hit bool) {
	if pm == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	pm.cacheLookupsTotal.WithLabelValues(cacheName, result).Inc()
}

func (pm *PrometheusMetrics) SetCacheHitRate(cacheName string, rate float64) {
	if pm == nil {
		return
	}
	pm.cacheHitRate.WithLabelValues(cacheName).Set(rate)
}

// HTTP Metrics
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	pm.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Storage Metrics
func (pm *PrometheusMetrics) RecordStorageOperation(backend, operation, status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	pm.storageDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// Worker Metrics
func (pm *PrometheusMetrics) RecordWorkerJob(jobType, status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.workerJobsTotal.WithLabelValues(jobType, status).Inc()
	pm.workerJobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// Error Metrics
func (pm *PrometheusMetrics) RecordError(component, errorType string) {
	if pm == nil {
		return
	}
	pm.errorRate.WithLabelValues(component, errorType).Inc()
}

// initializeMetrics initializes all Prometheus metrics
func (pm *PrometheusMetrics) initializeMetrics() {
	namespace := pm.config.Namespace
	subsystem := pm.config.Subsystem

	// Detection metrics
	pm.detectionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "detection_runs_total",
			Help:      "Total number of detection runs",
		},
		[]string{"algorithm", "status"},
	)

	pm.detectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "detection_duration_seconds",
			Help:      "Detection run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
		[]string{"algorithm"},
	)

	pm.sensorsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sensors_processed_total",
			Help:      "Total number of sensors analyzed",
		},
		[]string{"status"},
	)

	pm.slaBreachesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sla_breaches_total",
			Help:      "Total number of detection runs that exceeded their processing budget",
		},
	)

	pm.slaOverageRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sla_overage_ratio",
			Help:      "Fraction by which breaching runs exceeded their budget",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	pm.anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "anomalies_total",
			Help:      "Total number of anomalous readings detected",
		},
		[]string{"severity"},
	)

	pm.patternsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "patterns_total",
			Help:      "Total number of patterns detected",
		},
		[]string{"pattern_type", "severity"},
	)

	pm.classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "classifications_total",
			Help:      "Total number of classified patterns",
		},
		[]string{"classified_type", "urgency"},
	)

	pm.riskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "risk_score",
			Help:      "Distribution of classification risk scores",
			Buckets:   []float64{10, 20, 35, 50, 60, 70, 80, 85, 90, 100},
		},
	)

	pm.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_lookups_total",
			Help:      "Total number of cache lookups",
		},
		[]string{"cache", "result"},
	)

	pm.cacheHitRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hit_rate",
			Help:      "Cache hit rate since start",
		},
		[]string{"cache"},
	)

	// HTTP metrics
	pm.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Storage metrics
	pm.storageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	pm.storageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "storage_operation_duration_seconds",
			Help:      "Storage operation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"backend", "operation"},
	)

	// Worker metrics
	pm.workerJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "worker_jobs_total",
			Help:      "Total number of worker jobs",
		},
		[]string{"job_type", "status"},
	)

	pm.workerJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "worker_job_duration_seconds",
			Help:      "Worker job duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"job_type"},
	)

	pm.errorRate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"component", "type"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() error {
	metrics := []prometheus.Collector{
		pm.detectionRunsTotal,
		pm.detectionDuration,
		pm.sensorsProcessedTotal,
		pm.slaBreachesTotal,
		pm.slaOverageRatio,
		pm.anomaliesTotal,
		pm.patternsTotal,
		pm.classificationsTotal,
		pm.riskScore,
		pm.cacheLookupsTotal,
		pm.cacheHitRate,
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.storageOperationsTotal,
		pm.storageDuration,
		pm.workerJobsTotal,
		pm.workerJobDuration,
		pm.errorRate,
	}

	for _, metric := range metrics {
		if err := pm.registry.Register(metric); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// DefaultPrometheusConfig returns the default configuration.
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: constants.MetricsNamespace,
	}
}
