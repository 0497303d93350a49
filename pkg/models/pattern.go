package models

import "time"

// Severity is the severity bucket of an anomaly or pattern.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// AlgorithmType selects an anomaly detection strategy.
type AlgorithmType string

const (
	AlgorithmStatisticalZScore     AlgorithmType = "statistical_zscore"
	AlgorithmModifiedZScore        AlgorithmType = "modified_zscore"
	AlgorithmInterquartileRange    AlgorithmType = "interquartile_range"
	AlgorithmMovingAverage         AlgorithmType = "moving_average"
	AlgorithmSeasonalDecomposition AlgorithmType = "seasonal_decomposition"
)

// Algorithms lists every supported strategy.
func Algorithms() []AlgorithmType {
	return []AlgorithmType{
		AlgorithmStatisticalZScore,
		AlgorithmModifiedZScore,
		AlgorithmInterquartileRange,
		AlgorithmMovingAverage,
		AlgorithmSeasonalDecomposition,
	}
}

// Valid reports whether a is a supported strategy.
func (a AlgorithmType) Valid() bool {
	for _, known := range Algorithms() {
		if a == known {
			return true
		}
	}
	return false
}

// PatternType is the detection-stage type of a pattern.
type PatternType string

const (
	PatternTypeAnomaly     PatternType = "anomaly"
	PatternTypeTrend       PatternType = "trend"
	PatternTypeThreshold   PatternType = "threshold"
	PatternTypeCorrelation PatternType = "correlation"
)

// Valid reports whether t is a known pattern type.
func (t PatternType) Valid() bool {
	switch t {
	case PatternTypeAnomaly, PatternTypeTrend, PatternTypeThreshold, PatternTypeCorrelation:
		return true
	default:
		return false
	}
}

// DetectedAnomaly is a single anomalous reading produced by a detector.
type DetectedAnomaly struct {
	Timestamp       time.Time `json:"timestamp"`
	SensorID        string    `json:"sensor_id"`
	Value           float64   `json:"value"`
	ExpectedValue   float64   `json:"expected_value"`
	Deviation       float64   `json:"deviation"`
	ConfidenceScore float64   `json:"confidence_score"`
	Severity        Severity  `json:"severity"`
}

// PatternDataPoint is one reading of the series a pattern was detected in.
type PatternDataPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Value         float64   `json:"value"`
	ExpectedValue float64   `json:"expected_value"`
	Deviation     float64   `json:"deviation"`
	IsAnomaly     bool      `json:"is_anomaly"`
}

// CorrelationFactor records a strong relationship between the pattern sensor
// and another sensor. A positive lag means the related sensor follows.
type CorrelationFactor struct {
	RelatedSensorID        string  `json:"related_sensor_id"`
	CorrelationCoefficient float64 `json:"correlation_coefficient"`
	TimeLagMinutes         float64 `json:"time_lag_minutes"`
	Confidence             float64 `json:"confidence"`
}

// PatternMetadata describes how a pattern was detected.
type PatternMetadata struct {
	DetectionAlgorithm    AlgorithmType       `json:"detection_algorithm"`
	AnalysisWindow        AnalysisWindow      `json:"analysis_window"`
	ThresholdUsed         float64             `json:"threshold_used"`
	HistoricalOccurrences int                 `json:"historical_occurrences"`
	StatisticalMetrics    StatisticalMetrics  `json:"statistical_metrics"`
	CorrelationFactors    []CorrelationFactor `json:"correlation_factors,omitempty"`
}

// DetectedPattern groups the anomalies found for one sensor in one window.
// Classification never edits a pattern; it produces a ClassificationResult.
type DetectedPattern struct {
	ID              string             `json:"id"`
	Timestamp       time.Time          `json:"timestamp"`
	SensorID        string             `json:"sensor_id"`
	EquipmentType   string             `json:"equipment_type"`
	FloorNumber     *int               `json:"floor_number,omitempty"`
	PatternType     PatternType        `json:"pattern_type"`
	Severity        Severity           `json:"severity"`
	ConfidenceScore float64            `json:"confidence_score"`
	Description     string             `json:"description"`
	DataPoints      []PatternDataPoint `json:"data_points"`
	Metadata        PatternMetadata    `json:"metadata"`
}

// AnomalyCount returns the number of anomalous data points.
func (p DetectedPattern) AnomalyCount() int {
	count := 0
	for _, dp := range p.DataPoints {
		if dp.IsAnomaly {
			count++
		}
	}
	return count
}

// WithCorrelationFactors returns a copy of p carrying the given factors.
func (p DetectedPattern) WithCorrelationFactors(factors []CorrelationFactor) DetectedPattern {
	out := p
	out.Metadata.CorrelationFactors = append([]CorrelationFactor(nil), factors...)
	return out
}
