package constants

import "time"

// Application constants
const (
	// Application metadata
	AppName        = "patternscope"
	AppDescription = "Statistical pattern detection for building sensor telemetry"
	AppVersion     = "0.1.0"

	// API constants
	APIVersion = "v1"
	APIPrefix  = "/api/v1"

	// Environment variable prefix for configuration overrides
	EnvPrefix = "PATTERNSCOPE"

	// Metrics namespace
	MetricsNamespace = "patternscope"

	// Default server configuration values
	DefaultPort            = 8080
	DefaultHost            = "0.0.0.0"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Request limits
	MaxUploadSize = 32 * 1024 * 1024 // 32MB
)

// Detection thresholds
const (
	// DefaultZScoreThreshold: 3σ covers 99.7% of a normal distribution, so a
	// reading beyond it occurs by chance about 3 times in 1000.
	DefaultZScoreThreshold = 3.0

	// DefaultModifiedZScoreThreshold: 3.5 is the Iglewicz-Hoaglin cutoff for
	// the MAD-based modified z-score.
	DefaultModifiedZScoreThreshold = 3.5

	// DefaultIQRMultiplier: Tukey fences at 1.5·IQR flag roughly 0.7% of
	// normally distributed data.
	DefaultIQRMultiplier = 1.5

	// DefaultMovingAverageThreshold applies the 3σ rule to the trailing window.
	DefaultMovingAverageThreshold = 3.0

	// DefaultSeasonalThreshold applies the 3σ rule to deseasonalized residuals.
	DefaultSeasonalThreshold = 3.0

	// DefaultMinimumDataPoints: below 30 samples the sample mean is not
	// approximately normal (central limit theorem rule of thumb).
	DefaultMinimumDataPoints = 30

	// DefaultWindowSize is the trailing window of the moving average detector.
	DefaultWindowSize = 10

	// DefaultSeasonalPeriod is one day, the dominant cycle of building loads.
	DefaultSeasonalPeriod = 24 * time.Hour

	// DefaultSeasonalBuckets gives hourly phase buckets over the period.
	DefaultSeasonalBuckets = 24

	// MinSeasonalBucketSamples is the smallest bucket whose median is trusted.
	MinSeasonalBucketSamples = 3

	// ModifiedZScoreConstant is Φ⁻¹(0.75), making MAD consistent with σ.
	ModifiedZScoreConstant = 0.6745

	// MeanAbsDevConstant is √(π/2), making mean absolute deviation consistent
	// with σ when MAD is zero.
	MeanAbsDevConstant = 1.253314

	// DefaultTrendMinRSquared: a linear fit explaining 70% of the variance is
	// treated as a trend.
	DefaultTrendMinRSquared = 0.7
)

// Scoring
const (
	// DefaultConfidenceFloor is the confidence of a reading just past the threshold.
	DefaultConfidenceFloor = 60.0

	// DefaultWarningRatio: 20% past the threshold is a warning.
	DefaultWarningRatio = 1.2

	// DefaultCriticalRatio: twice the threshold (6σ for z-score) is critical
	// and saturates confidence at 100.
	DefaultCriticalRatio = 2.0

	MaxConfidence = 100.0
	MaxRiskScore  = 100.0
)

// Correlation
const (
	// DefaultCorrelationThreshold: |r| > 0.7 is conventionally a strong
	// linear relationship.
	DefaultCorrelationThreshold = 0.7

	DefaultAlignmentInterval = 5 * time.Minute
	DefaultMaxLag            = 30 * time.Minute

	// DefaultMinOverlap is the fewest aligned buckets a coefficient is computed on.
	DefaultMinOverlap = 3

	// DefaultFullConfidenceOverlap is the overlap at which factor confidence
	// is no longer discounted.
	DefaultFullConfidenceOverlap = 12
)

// Scheduling and SLA
const (
	// DefaultMaxSensorsParallel bounds per-batch fan-out.
	DefaultMaxSensorsParallel = 10

	// DefaultTargetProcessingTime is the SLA for a 50 sensor run.
	DefaultTargetProcessingTime = 3 * time.Second

	// DefaultPerSensorBudget is the target divided across 50 sensors.
	DefaultPerSensorBudget = 60 * time.Millisecond

	// SLASensorCount is the sensor count the SLA is stated for.
	SLASensorCount = 50
)

// Cache
const (
	DefaultCacheTTL       = 5 * time.Minute
	DefaultCacheSize      = 1000
	DefaultCachePrefix    = "patternscope:"
	DefaultRemoteCacheTTL = 15 * time.Minute
)

// Classification
const (
	DefaultCascadeFactorConfidence    = 70.0
	DefaultSustainedMinPoints         = 30
	DefaultSustainedAnomalyFraction   = 0.8
	DefaultSustainedDeviationCV       = 0.25
	DefaultIntermittentMinOccurrences = 3
	DefaultIntermittentGapCV          = 0.5
	DefaultGradualMonotonicFraction   = 0.8
	DefaultSpikeMaxPoints             = 3
	DefaultSpikeMaxFraction           = 0.2

	// Escalation thresholds on the 0-100 risk score
	DefaultEscalateWarningToCritical = 85.0
	DefaultEscalateInfoToWarning     = 70.0

	// Urgency bands on the 0-100 risk score
	DefaultImmediateRisk = 80.0
	DefaultUrgentRisk    = 60.0
	DefaultScheduledRisk = 35.0

	// DefaultEquipmentCriticality applies to unlisted equipment types.
	DefaultEquipmentCriticality = 0.6
)

// Risk factor weights; they sum to 1.
const (
	WeightStatisticalConfidence = 0.25
	WeightSeverityLevel         = 0.25
	WeightEquipmentCriticality  = 0.20
	WeightPatternTypeRisk       = 0.20
	WeightCorrelationEvidence   = 0.10
)

// Risk factor names
const (
	FactorStatisticalConfidence = "statistical_confidence"
	FactorSeverityLevel         = "severity_level"
	FactorEquipmentCriticality  = "equipment_criticality"
	FactorPatternTypeRisk       = "pattern_type_risk"
	FactorCorrelationEvidence   = "correlation_evidence"
)

// Invalid value policies
const (
	InvalidValuePolicyDrop   = "drop"
	InvalidValuePolicyReject = "reject"
)

// Equipment types with an explicit criticality.
const (
	EquipmentPower      = "Power"
	EquipmentFireSafety = "Fire Safety"
	EquipmentHVAC       = "HVAC"
	EquipmentElevator   = "Elevator"
	EquipmentWater      = "Water"
	EquipmentSecurity   = "Security"
	EquipmentLighting   = "Lighting"
)

// Output formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
)

// Storage types
const (
	StorageTypeFile        = "file"
	StorageTypeInfluxDB    = "influxdb"
	StorageTypeTimescaleDB = "timescaledb"
	StorageTypeS3          = "s3"
	StorageTypeRedis       = "redis"
)

// HTTP headers
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
	ContentTypeJSON   = "application/json"
)
