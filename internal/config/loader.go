package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/inferloop/patternscope/pkg/constants"
)

// Load reads configuration from an optional YAML file and PATTERNSCOPE_*
// environment variables on top of Default(), then validates the result.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-supplied viper instance, so that command line
// flags bound to v take part in resolution.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("patternscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/patternscope")
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers the scalar keys so that AutomaticEnv can resolve
// them without a config file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("detection.algorithm", string(cfg.Detection.Algorithm))
	v.SetDefault("detection.threshold_multiplier", cfg.Detection.ThresholdMultiplier)
	v.SetDefault("detection.minimum_data_points", cfg.Detection.MinimumDataPoints)
	v.SetDefault("detection.window_size", cfg.Detection.WindowSize)
	v.SetDefault("detection.seasonal_period", cfg.Detection.SeasonalPeriod)
	v.SetDefault("detection.seasonal_buckets", cfg.Detection.SeasonalBuckets)
	v.SetDefault("detection.invalid_value_policy", cfg.Detection.InvalidValuePolicy)
	v.SetDefault("detection.confidence_floor", cfg.Detection.ConfidenceFloor)
	v.SetDefault("detection.warning_ratio", cfg.Detection.WarningRatio)
	v.SetDefault("detection.critical_ratio", cfg.Detection.CriticalRatio)
	v.SetDefault("detection.trend_min_r_squared", cfg.Detection.TrendMinRSquared)

	v.SetDefault("correlation.enabled", cfg.Correlation.Enabled)
	v.SetDefault("correlation.threshold", cfg.Correlation.Threshold)
	v.SetDefault("correlation.alignment_interval", cfg.Correlation.AlignmentInterval)
	v.SetDefault("correlation.max_lag", cfg.Correlation.MaxLag)
	v.SetDefault("correlation.min_overlap", cfg.Correlation.MinOverlap)
	v.SetDefault("correlation.full_confidence_overlap", cfg.Correlation.FullConfidenceOverlap)

	v.SetDefault("scheduler.max_sensors_parallel", cfg.Scheduler.MaxSensorsParallel)
	v.SetDefault("scheduler.target_processing_time", cfg.Scheduler.TargetProcessingTime)
	v.SetDefault("scheduler.per_sensor_budget", cfg.Scheduler.PerSensorBudget)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.size", cfg.Cache.Size)
	v.SetDefault("cache.remote.enabled", cfg.Cache.Remote.Enabled)
	v.SetDefault("cache.remote.addrs", cfg.Cache.Remote.Addrs)
	v.SetDefault("cache.remote.password", cfg.Cache.Remote.Password)
	v.SetDefault("cache.remote.key_prefix", cfg.Cache.Remote.KeyPrefix)
	v.SetDefault("cache.remote.ttl", cfg.Cache.Remote.TTL)

	v.SetDefault("classification.default_criticality", cfg.Classification.DefaultCriticality)
	v.SetDefault("classification.escalation.warning_to_critical", cfg.Classification.Escalation.WarningToCritical)
	v.SetDefault("classification.escalation.info_to_warning", cfg.Classification.Escalation.InfoToWarning)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)

	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.enable_metrics", cfg.Server.EnableMetrics)

	v.SetDefault("storage.influxdb.url", cfg.Storage.InfluxDB.URL)
	v.SetDefault("storage.influxdb.token", cfg.Storage.InfluxDB.Token)
	v.SetDefault("storage.influxdb.organization", cfg.Storage.InfluxDB.Organization)
	v.SetDefault("storage.influxdb.bucket", cfg.Storage.InfluxDB.Bucket)
	v.SetDefault("storage.timescaledb.host", cfg.Storage.TimescaleDB.Host)
	v.SetDefault("storage.timescaledb.password", cfg.Storage.TimescaleDB.Password)
	v.SetDefault("storage.s3.bucket", cfg.Storage.S3.Bucket)
	v.SetDefault("storage.s3.region", cfg.Storage.S3.Region)

	v.SetDefault("worker.interval", cfg.Worker.Interval)
	v.SetDefault("worker.lookback", cfg.Worker.Lookback)
	v.SetDefault("worker.source", cfg.Worker.Source)

	v.SetDefault("alerting.enabled", cfg.Alerting.Enabled)
	v.SetDefault("alerting.min_risk_score", cfg.Alerting.MinRiskScore)
	v.SetDefault("alerting.repeat_interval", cfg.Alerting.RepeatInterval)
}
