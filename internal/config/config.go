package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// Config is the complete configuration of the detection core and the
// processes around it. Values are treated as immutable: the With* methods
// return modified copies and never touch the receiver.
type Config struct {
	Detection      DetectionConfig      `json:"detection" yaml:"detection" mapstructure:"detection"`
	Correlation    CorrelationConfig    `json:"correlation" yaml:"correlation" mapstructure:"correlation"`
	Scheduler      SchedulerConfig      `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Cache          CacheConfig          `json:"cache" yaml:"cache" mapstructure:"cache"`
	Classification ClassificationConfig `json:"classification" yaml:"classification" mapstructure:"classification"`
	Logging        LoggingConfig        `json:"logging" yaml:"logging" mapstructure:"logging"`
	Server         ServerConfig         `json:"server" yaml:"server" mapstructure:"server"`
	Storage        StorageConfig        `json:"storage" yaml:"storage" mapstructure:"storage"`
	Worker         WorkerConfig         `json:"worker" yaml:"worker" mapstructure:"worker"`
	Alerting       AlertingConfig       `json:"alerting" yaml:"alerting" mapstructure:"alerting"`
}

// DetectionConfig configures the anomaly detectors.
type DetectionConfig struct {
	Algorithm           models.AlgorithmType     `json:"algorithm" yaml:"algorithm" mapstructure:"algorithm"`
	ThresholdMultiplier float64                  `json:"threshold_multiplier" yaml:"threshold_multiplier" mapstructure:"threshold_multiplier"`
	MinimumDataPoints   int                      `json:"minimum_data_points" yaml:"minimum_data_points" mapstructure:"minimum_data_points"`
	WindowSize          int                      `json:"window_size" yaml:"window_size" mapstructure:"window_size"`                // moving average only
	SeasonalPeriod      time.Duration            `json:"seasonal_period" yaml:"seasonal_period" mapstructure:"seasonal_period"`    // seasonal only
	SeasonalBuckets     int                      `json:"seasonal_buckets" yaml:"seasonal_buckets" mapstructure:"seasonal_buckets"` // seasonal only
	InvalidValuePolicy  string                   `json:"invalid_value_policy" yaml:"invalid_value_policy" mapstructure:"invalid_value_policy"`
	ConfidenceFloor     float64                  `json:"confidence_floor" yaml:"confidence_floor" mapstructure:"confidence_floor"`
	WarningRatio        float64                  `json:"warning_ratio" yaml:"warning_ratio" mapstructure:"warning_ratio"`
	CriticalRatio       float64                  `json:"critical_ratio" yaml:"critical_ratio" mapstructure:"critical_ratio"`
	TrendMinRSquared    float64                  `json:"trend_min_r_squared" yaml:"trend_min_r_squared" mapstructure:"trend_min_r_squared"`
	ThresholdRules      map[string]ThresholdRule `json:"threshold_rules,omitempty" yaml:"threshold_rules,omitempty" mapstructure:"threshold_rules"` // keyed by equipment type
}

// ThresholdRule is an absolute operating limit for one equipment type.
type ThresholdRule struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty" mapstructure:"min"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty" mapstructure:"max"`
}

// Breached reports whether v lies outside the rule's limits.
func (r ThresholdRule) Breached(v float64) bool {
	return (r.Min != nil && v < *r.Min) || (r.Max != nil && v > *r.Max)
}

// RuleFor returns the threshold rule of an equipment type, matched
// case-insensitively.
func (c DetectionConfig) RuleFor(equipment string) (ThresholdRule, bool) {
	if rule, ok := c.ThresholdRules[equipment]; ok {
		return rule, true
	}
	for name, rule := range c.ThresholdRules {
		if strings.EqualFold(name, equipment) {
			return rule, true
		}
	}
	return ThresholdRule{}, false
}

// CorrelationConfig configures cross-sensor correlation.
type CorrelationConfig struct {
	Enabled               bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Threshold             float64       `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	AlignmentInterval     time.Duration `json:"alignment_interval" yaml:"alignment_interval" mapstructure:"alignment_interval"`
	MaxLag                time.Duration `json:"max_lag" yaml:"max_lag" mapstructure:"max_lag"`
	MinOverlap            int           `json:"min_overlap" yaml:"min_overlap" mapstructure:"min_overlap"`
	FullConfidenceOverlap int           `json:"full_confidence_overlap" yaml:"full_confidence_overlap" mapstructure:"full_confidence_overlap"`
}

// SchedulerConfig configures batch execution and the SLA budget.
type SchedulerConfig struct {
	MaxSensorsParallel   int           `json:"max_sensors_parallel" yaml:"max_sensors_parallel" mapstructure:"max_sensors_parallel"`
	TargetProcessingTime time.Duration `json:"target_processing_time" yaml:"target_processing_time" mapstructure:"target_processing_time"`
	PerSensorBudget      time.Duration `json:"per_sensor_budget" yaml:"per_sensor_budget" mapstructure:"per_sensor_budget"`
}

// Budget returns the SLA budget for a run over n sensors.
func (c SchedulerConfig) Budget(n int) time.Duration {
	budget := c.PerSensorBudget * time.Duration(n)
	if budget > c.TargetProcessingTime {
		return c.TargetProcessingTime
	}
	return budget
}

// CacheConfig configures the statistics cache.
type CacheConfig struct {
	Enabled bool              `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration     `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	Size    int               `json:"size" yaml:"size" mapstructure:"size"`
	Remote  RemoteCacheConfig `json:"remote" yaml:"remote" mapstructure:"remote"`
}

// RemoteCacheConfig configures the optional shared Redis tier.
type RemoteCacheConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Addrs        []string      `json:"addrs" yaml:"addrs" mapstructure:"addrs"`
	Password     string        `json:"-" yaml:"password" mapstructure:"password"`
	DB           int           `json:"db" yaml:"db" mapstructure:"db"`
	KeyPrefix    string        `json:"key_prefix" yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL          time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
}

// ClassificationConfig configures rule thresholds, risk tables and bands.
type ClassificationConfig struct {
	EquipmentCriticality       map[string]float64 `json:"equipment_criticality" yaml:"equipment_criticality" mapstructure:"equipment_criticality"`
	DefaultCriticality         float64            `json:"default_criticality" yaml:"default_criticality" mapstructure:"default_criticality"`
	CascadeFactorConfidence    float64            `json:"cascade_factor_confidence" yaml:"cascade_factor_confidence" mapstructure:"cascade_factor_confidence"`
	SustainedMinPoints         int                `json:"sustained_min_points" yaml:"sustained_min_points" mapstructure:"sustained_min_points"`
	SustainedAnomalyFraction   float64            `json:"sustained_anomaly_fraction" yaml:"sustained_anomaly_fraction" mapstructure:"sustained_anomaly_fraction"`
	SustainedDeviationCV       float64            `json:"sustained_deviation_cv" yaml:"sustained_deviation_cv" mapstructure:"sustained_deviation_cv"`
	IntermittentMinOccurrences int                `json:"intermittent_min_occurrences" yaml:"intermittent_min_occurrences" mapstructure:"intermittent_min_occurrences"`
	IntermittentGapCV          float64            `json:"intermittent_gap_cv" yaml:"intermittent_gap_cv" mapstructure:"intermittent_gap_cv"`
	GradualMonotonicFraction   float64            `json:"gradual_monotonic_fraction" yaml:"gradual_monotonic_fraction" mapstructure:"gradual_monotonic_fraction"`
	SpikeMaxPoints             int                `json:"spike_max_points" yaml:"spike_max_points" mapstructure:"spike_max_points"`
	SpikeMaxFraction           float64            `json:"spike_max_fraction" yaml:"spike_max_fraction" mapstructure:"spike_max_fraction"`
	Escalation                 EscalationConfig   `json:"escalation" yaml:"escalation" mapstructure:"escalation"`
	UrgencyBands               []UrgencyBand      `json:"urgency_bands" yaml:"urgency_bands" mapstructure:"urgency_bands"`
}

// EscalationConfig holds the risk scores above which severity is raised.
type EscalationConfig struct {
	WarningToCritical float64 `json:"warning_to_critical" yaml:"warning_to_critical" mapstructure:"warning_to_critical"`
	InfoToWarning     float64 `json:"info_to_warning" yaml:"info_to_warning" mapstructure:"info_to_warning"`
}

// UrgencyBand maps a risk score range to an urgency level. Bands are matched
// in order; the first band whose conditions hold wins.
type UrgencyBand struct {
	Level            models.UrgencyLevel `json:"level" yaml:"level" mapstructure:"level"`
	MinRisk          float64             `json:"min_risk" yaml:"min_risk" mapstructure:"min_risk"`
	RequiresCritical bool                `json:"requires_critical" yaml:"requires_critical" mapstructure:"requires_critical"`
	ResponseHours    float64             `json:"response_hours" yaml:"response_hours" mapstructure:"response_hours"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"`
	File       string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress" mapstructure:"compress"`
}

// ServerConfig configures the HTTP entry point.
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host" mapstructure:"host"`
	Port            int           `json:"port" yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	EnableMetrics   bool          `json:"enable_metrics" yaml:"enable_metrics" mapstructure:"enable_metrics"`
}

// Address returns host:port.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WorkerConfig configures the periodic detection worker.
type WorkerConfig struct {
	Interval  time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	Lookback  time.Duration `json:"lookback" yaml:"lookback" mapstructure:"lookback"`
	SensorIDs []string      `json:"sensor_ids" yaml:"sensor_ids" mapstructure:"sensor_ids"`
	Source    string        `json:"source" yaml:"source" mapstructure:"source"`
	Sinks     []string      `json:"sinks" yaml:"sinks" mapstructure:"sinks"`
}

// AlertingConfig configures the alerts raised from classified patterns.
type AlertingConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	MinRiskScore    float64       `json:"min_risk_score" yaml:"min_risk_score" mapstructure:"min_risk_score"`
	RepeatInterval  time.Duration `json:"repeat_interval" yaml:"repeat_interval" mapstructure:"repeat_interval"`
	MaxActiveAlerts int           `json:"max_active_alerts" yaml:"max_active_alerts" mapstructure:"max_active_alerts"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Detection: DetectionConfig{
			Algorithm:           models.AlgorithmStatisticalZScore,
			ThresholdMultiplier: constants.DefaultZScoreThreshold,
			MinimumDataPoints:   constants.DefaultMinimumDataPoints,
			WindowSize:          constants.DefaultWindowSize,
			SeasonalPeriod:      constants.DefaultSeasonalPeriod,
			SeasonalBuckets:     constants.DefaultSeasonalBuckets,
			InvalidValuePolicy:  constants.InvalidValuePolicyDrop,
			ConfidenceFloor:     constants.DefaultConfidenceFloor,
			WarningRatio:        constants.DefaultWarningRatio,
			CriticalRatio:       constants.DefaultCriticalRatio,
			TrendMinRSquared:    constants.DefaultTrendMinRSquared,
		},
		Correlation: CorrelationConfig{
			Enabled:               true,
			Threshold:             constants.DefaultCorrelationThreshold,
			AlignmentInterval:     constants.DefaultAlignmentInterval,
			MaxLag:                constants.DefaultMaxLag,
			MinOverlap:            constants.DefaultMinOverlap,
			FullConfidenceOverlap: constants.DefaultFullConfidenceOverlap,
		},
		Scheduler: SchedulerConfig{
			MaxSensorsParallel:   constants.DefaultMaxSensorsParallel,
			TargetProcessingTime: constants.DefaultTargetProcessingTime,
			PerSensorBudget:      constants.DefaultPerSensorBudget,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     constants.DefaultCacheTTL,
			Size:    constants.DefaultCacheSize,
			Remote: RemoteCacheConfig{
				Addrs:        []string{"localhost:6379"},
				KeyPrefix:    constants.DefaultCachePrefix,
				TTL:          constants.DefaultRemoteCacheTTL,
				DialTimeout:  2 * time.Second,
				ReadTimeout:  500 * time.Millisecond,
				WriteTimeout: 500 * time.Millisecond,
				PoolSize:     10,
			},
		},
		Classification: ClassificationConfig{
			EquipmentCriticality:       DefaultEquipmentCriticality(),
			DefaultCriticality:         constants.DefaultEquipmentCriticality,
			CascadeFactorConfidence:    constants.DefaultCascadeFactorConfidence,
			SustainedMinPoints:         constants.DefaultSustainedMinPoints,
			SustainedAnomalyFraction:   constants.DefaultSustainedAnomalyFraction,
			SustainedDeviationCV:       constants.DefaultSustainedDeviationCV,
			IntermittentMinOccurrences: constants.DefaultIntermittentMinOccurrences,
			IntermittentGapCV:          constants.DefaultIntermittentGapCV,
			GradualMonotonicFraction:   constants.DefaultGradualMonotonicFraction,
			SpikeMaxPoints:             constants.DefaultSpikeMaxPoints,
			SpikeMaxFraction:           constants.DefaultSpikeMaxFraction,
			Escalation: EscalationConfig{
				WarningToCritical: constants.DefaultEscalateWarningToCritical,
				InfoToWarning:     constants.DefaultEscalateInfoToWarning,
			},
			UrgencyBands: DefaultUrgencyBands(),
		},
		Logging: LoggingConfig{
			Level:      constants.DefaultLogLevel,
			Format:     constants.DefaultLogFormat,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Server: ServerConfig{
			Host:            constants.DefaultHost,
			Port:            constants.DefaultPort,
			ReadTimeout:     constants.DefaultReadTimeout,
			WriteTimeout:    constants.DefaultWriteTimeout,
			IdleTimeout:     constants.DefaultIdleTimeout,
			ShutdownTimeout: constants.DefaultShutdownTimeout,
			EnableMetrics:   true,
		},
		Storage: DefaultStorageConfig(),
		Worker: WorkerConfig{
			Interval: 5 * time.Minute,
			Lookback: 24 * time.Hour,
			Source:   constants.StorageTypeInfluxDB,
		},
		Alerting: AlertingConfig{
			MinRiskScore:    70,
			RepeatInterval:  time.Hour,
			MaxActiveAlerts: 1000,
		},
	}
}

// DefaultEquipmentCriticality returns the built-in criticality table.
func DefaultEquipmentCriticality() map[string]float64 {
	return map[string]float64{
		constants.EquipmentPower:      1.0,
		constants.EquipmentFireSafety: 1.0,
		constants.EquipmentHVAC:       0.9,
		constants.EquipmentElevator:   0.85,
		constants.EquipmentWater:      0.7,
		constants.EquipmentSecurity:   0.6,
		constants.EquipmentLighting:   0.4,
	}
}

// DefaultUrgencyBands returns the built-in urgency bands, most urgent first.
func DefaultUrgencyBands() []UrgencyBand {
	return []UrgencyBand{
		{Level: models.UrgencyImmediate, MinRisk: constants.DefaultImmediateRisk, RequiresCritical: true, ResponseHours: 2},
		{Level: models.UrgencyUrgent, MinRisk: constants.DefaultUrgentRisk, ResponseHours: 24},
		{Level: models.UrgencyScheduled, MinRisk: constants.DefaultScheduledRisk, ResponseHours: 168},
		{Level: models.UrgencyMonitor, MinRisk: 0, ResponseHours: 720},
	}
}

// DefaultThreshold returns the conventional threshold multiplier of an algorithm.
func DefaultThreshold(algorithm models.AlgorithmType) float64 {
	switch algorithm {
	case models.AlgorithmModifiedZScore:
		return constants.DefaultModifiedZScoreThreshold
	case models.AlgorithmInterquartileRange:
		return constants.DefaultIQRMultiplier
	case models.AlgorithmMovingAverage:
		return constants.DefaultMovingAverageThreshold
	case models.AlgorithmSeasonalDecomposition:
		return constants.DefaultSeasonalThreshold
	default:
		return constants.DefaultZScoreThreshold
	}
}

// Validate checks every section and returns the first violation.
func (c Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if err := c.Correlation.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Alerting.Validate(); err != nil {
		return err
	}
	return c.Classification.Validate()
}

// Validate checks the alerting section.
func (c AlertingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.MinRiskScore < 0 || c.MinRiskScore > 100:
		return invalid("alerting.min_risk_score", "must be within [0, 100], got %v", c.MinRiskScore)
	case c.RepeatInterval < 0:
		return invalid("alerting.repeat_interval", "must not be negative, got %s", c.RepeatInterval)
	case c.MaxActiveAlerts < 1:
		return invalid("alerting.max_active_alerts", "must be positive, got %d", c.MaxActiveAlerts)
	}
	return nil
}

// Validate checks the detection section.
func (c DetectionConfig) Validate() error {
	switch {
	case !c.Algorithm.Valid():
		return invalid("detection.algorithm", "unknown algorithm %q", c.Algorithm)
	case c.ThresholdMultiplier <= 0:
		return invalid("detection.threshold_multiplier", "must be positive, got %v", c.ThresholdMultiplier)
	case c.MinimumDataPoints < 2:
		return invalid("detection.minimum_data_points", "must be at least 2, got %d", c.MinimumDataPoints)
	case c.WindowSize < 2:
		return invalid("detection.window_size", "must be at least 2, got %d", c.WindowSize)
	case c.SeasonalPeriod <= 0:
		return invalid("detection.seasonal_period", "must be positive, got %s", c.SeasonalPeriod)
	case c.SeasonalBuckets < 1:
		return invalid("detection.seasonal_buckets", "must be positive, got %d", c.SeasonalBuckets)
	case c.InvalidValuePolicy != constants.InvalidValuePolicyDrop && c.InvalidValuePolicy != constants.InvalidValuePolicyReject:
		return invalid("detection.invalid_value_policy", "must be %q or %q, got %q",
			constants.InvalidValuePolicyDrop, constants.InvalidValuePolicyReject, c.InvalidValuePolicy)
	case c.ConfidenceFloor < 0 || c.ConfidenceFloor > constants.MaxConfidence:
		return invalid("detection.confidence_floor", "must be within [0, 100], got %v", c.ConfidenceFloor)
	case c.WarningRatio < 1:
		return invalid("detection.warning_ratio", "must be at least 1, got %v", c.WarningRatio)
	case c.CriticalRatio <= c.WarningRatio:
		return invalid("detection.critical_ratio", "must exceed warning_ratio %v, got %v", c.WarningRatio, c.CriticalRatio)
	case c.TrendMinRSquared < 0 || c.TrendMinRSquared > 1:
		return invalid("detection.trend_min_r_squared", "must be within [0, 1], got %v", c.TrendMinRSquared)
	}
	for equipment, rule := range c.ThresholdRules {
		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			return invalid("detection.threshold_rules", "rule for %q has min above max", equipment)
		}
	}
	return nil
}

// Validate checks the correlation section.
func (c CorrelationConfig) Validate() error {
	switch {
	case c.Threshold <= 0 || c.Threshold >= 1:
		return invalid("correlation.threshold", "must be within (0, 1), got %v", c.Threshold)
	case c.AlignmentInterval <= 0:
		return invalid("correlation.alignment_interval", "must be positive, got %s", c.AlignmentInterval)
	case c.MaxLag < 0:
		return invalid("correlation.max_lag", "must not be negative, got %s", c.MaxLag)
	case c.MinOverlap < 2:
		return invalid("correlation.min_overlap", "must be at least 2, got %d", c.MinOverlap)
	case c.FullConfidenceOverlap < c.MinOverlap:
		return invalid("correlation.full_confidence_overlap", "must be at least min_overlap %d, got %d", c.MinOverlap, c.FullConfidenceOverlap)
	}
	return nil
}

// Validate checks the scheduler section.
func (c SchedulerConfig) Validate() error {
	switch {
	case c.MaxSensorsParallel < 1:
		return invalid("scheduler.max_sensors_parallel", "must be positive, got %d", c.MaxSensorsParallel)
	case c.TargetProcessingTime <= 0:
		return invalid("scheduler.target_processing_time", "must be positive, got %s", c.TargetProcessingTime)
	case c.PerSensorBudget <= 0:
		return invalid("scheduler.per_sensor_budget", "must be positive, got %s", c.PerSensorBudget)
	}
	return nil
}

// Validate checks the cache section.
func (c CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.TTL <= 0:
		return invalid("cache.ttl", "must be positive, got %s", c.TTL)
	case c.Size < 1:
		return invalid("cache.size", "must be positive, got %d", c.Size)
	case c.Remote.Enabled && len(c.Remote.Addrs) == 0:
		return invalid("cache.remote.addrs", "at least one address is required")
	}
	return nil
}

// Validate checks the classification section.
func (c ClassificationConfig) Validate() error {
	for equipment, weight := range c.EquipmentCriticality {
		if weight < 0 || weight > 1 {
			return invalid("classification.equipment_criticality", "weight for %q must be within [0, 1], got %v", equipment, weight)
		}
	}
	switch {
	case c.DefaultCriticality < 0 || c.DefaultCriticality > 1:
		return invalid("classification.default_criticality", "must be within [0, 1], got %v", c.DefaultCriticality)
	case c.Escalation.WarningToCritical < 0 || c.Escalation.WarningToCritical > constants.MaxRiskScore:
		return invalid("classification.escalation.warning_to_critical", "must be within [0, 100], got %v", c.Escalation.WarningToCritical)
	case c.Escalation.InfoToWarning < 0 || c.Escalation.InfoToWarning > constants.MaxRiskScore:
		return invalid("classification.escalation.info_to_warning", "must be within [0, 100], got %v", c.Escalation.InfoToWarning)
	case len(c.UrgencyBands) == 0:
		return invalid("classification.urgency_bands", "at least one band is required")
	}
	for i, band := range c.UrgencyBands {
		if band.Level.Rank() == 0 {
			return invalid("classification.urgency_bands", "band %d has unknown level %q", i, band.Level)
		}
		if band.ResponseHours <= 0 {
			return invalid("classification.urgency_bands", "band %d must have a positive response time", i)
		}
	}
	return nil
}

func invalid(field, format string, args ...interface{}) error {
	message := fmt.Sprintf("invalid %s: %s", field, fmt.Sprintf(format, args...))
	return errors.NewConfigurationError(errors.CodeInvalidConfig, message).WithContext("field", field)
}
