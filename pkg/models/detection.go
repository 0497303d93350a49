package models

// DetectionRequest is the input of a detection run.
type DetectionRequest struct {
	Series  map[string][]TimeSeriesPoint `json:"series"`
	Sensors map[string]SensorInfo        `json:"sensors,omitempty"`
	Window  AnalysisWindow               `json:"window"`
}

// PointCount returns the total number of points across all sensors.
func (r DetectionRequest) PointCount() int {
	total := 0
	for _, series := range r.Series {
		total += len(series)
	}
	return total
}

// PerformanceMetrics reports timing, SLA and cache behaviour of a run.
type PerformanceMetrics struct {
	ProcessingTimeMs float64  `json:"processing_time_ms"`
	BudgetMs         float64  `json:"budget_ms"`
	SLABreached      bool     `json:"sla_breached"`
	OveragePercent   float64  `json:"overage_percent,omitempty"`
	SensorsProcessed int      `json:"sensors_processed"`
	SensorsFailed    int      `json:"sensors_failed"`
	BatchCount       int      `json:"batch_count"`
	CacheHits        uint64   `json:"cache_hits"`
	CacheMisses      uint64   `json:"cache_misses"`
	CacheHitRate     float64  `json:"cache_hit_rate"`
	Warnings         []string `json:"warnings,omitempty"`
}

// DetectionResult is the output of a detection run. Data-quality failures are
// reported through Success/Error rather than returned as Go errors.
type DetectionResult struct {
	Success            bool                          `json:"success"`
	Window             AnalysisWindow                `json:"window"`
	Patterns           []DetectedPattern             `json:"patterns,omitempty"`
	Classifications    []ClassificationResult        `json:"classifications,omitempty"`
	StatisticalSummary map[string]StatisticalMetrics `json:"statistical_summary,omitempty"`
	PerformanceMetrics *PerformanceMetrics           `json:"performance_metrics,omitempty"`
	SensorErrors       map[string]string             `json:"sensor_errors,omitempty"`
	OutOfWindowPoints  map[string]int                `json:"out_of_window_points,omitempty"`
	Error              string                        `json:"error,omitempty"`
}

// PartialSuccess reports whether some, but not all, sensors failed.
func (r *DetectionResult) PartialSuccess() bool {
	return r.Success && len(r.SensorErrors) > 0
}
