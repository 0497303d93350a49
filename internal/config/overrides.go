package config

import (
	"time"

	"github.com/inferloop/patternscope/pkg/models"
)

// Clone returns a deep copy; maps and slices are never shared with c.
func (c Config) Clone() Config {
	out := c
	out.Detection.ThresholdRules = cloneRules(c.Detection.ThresholdRules)
	out.Cache.Remote.Addrs = append([]string(nil), c.Cache.Remote.Addrs...)
	out.Classification.EquipmentCriticality = cloneWeights(c.Classification.EquipmentCriticality)
	out.Classification.UrgencyBands = append([]UrgencyBand(nil), c.Classification.UrgencyBands...)
	out.Worker.SensorIDs = append([]string(nil), c.Worker.SensorIDs...)
	out.Worker.Sinks = append([]string(nil), c.Worker.Sinks...)
	return out
}

// WithAlgorithm selects a detection algorithm and resets the threshold
// multiplier to that algorithm's conventional default.
func (c Config) WithAlgorithm(algorithm models.AlgorithmType) Config {
	out := c.Clone()
	out.Detection.Algorithm = algorithm
	out.Detection.ThresholdMultiplier = DefaultThreshold(algorithm)
	return out
}

// WithThresholdMultiplier overrides the detection threshold.
func (c Config) WithThresholdMultiplier(multiplier float64) Config {
	out := c.Clone()
	out.Detection.ThresholdMultiplier = multiplier
	return out
}

// WithMinimumDataPoints overrides the minimum sample size.
func (c Config) WithMinimumDataPoints(n int) Config {
	out := c.Clone()
	out.Detection.MinimumDataPoints = n
	return out
}

// WithWindowSize overrides the moving average window.
func (c Config) WithWindowSize(n int) Config {
	out := c.Clone()
	out.Detection.WindowSize = n
	return out
}

// WithInvalidValuePolicy overrides the handling of NaN and infinite values.
func (c Config) WithInvalidValuePolicy(policy string) Config {
	out := c.Clone()
	out.Detection.InvalidValuePolicy = policy
	return out
}

// WithThresholdRule sets the absolute limits for an equipment type.
func (c Config) WithThresholdRule(equipment string, rule ThresholdRule) Config {
	out := c.Clone()
	if out.Detection.ThresholdRules == nil {
		out.Detection.ThresholdRules = make(map[string]ThresholdRule)
	}
	out.Detection.ThresholdRules[equipment] = rule
	return out
}

// WithCorrelationThreshold overrides the |r| above which factors are attached.
func (c Config) WithCorrelationThreshold(threshold float64) Config {
	out := c.Clone()
	out.Correlation.Threshold = threshold
	return out
}

// WithCorrelationEnabled toggles cross-sensor annotation.
func (c Config) WithCorrelationEnabled(enabled bool) Config {
	out := c.Clone()
	out.Correlation.Enabled = enabled
	return out
}

// WithMaxSensorsParallel overrides the batch size.
func (c Config) WithMaxSensorsParallel(n int) Config {
	out := c.Clone()
	out.Scheduler.MaxSensorsParallel = n
	return out
}

// WithTargetProcessingTime overrides the SLA cap.
func (c Config) WithTargetProcessingTime(d time.Duration) Config {
	out := c.Clone()
	out.Scheduler.TargetProcessingTime = d
	return out
}

// WithCacheTTL overrides the cache entry lifetime.
func (c Config) WithCacheTTL(ttl time.Duration) Config {
	out := c.Clone()
	out.Cache.TTL = ttl
	return out
}

// WithCacheEnabled toggles the statistics cache.
func (c Config) WithCacheEnabled(enabled bool) Config {
	out := c.Clone()
	out.Cache.Enabled = enabled
	return out
}

// WithEquipmentCriticality sets the criticality weight of an equipment type.
func (c Config) WithEquipmentCriticality(equipment string, weight float64) Config {
	out := c.Clone()
	if out.Classification.EquipmentCriticality == nil {
		out.Classification.EquipmentCriticality = make(map[string]float64)
	}
	out.Classification.EquipmentCriticality[equipment] = weight
	return out
}

// WithEscalation overrides the escalation thresholds.
func (c Config) WithEscalation(escalation EscalationConfig) Config {
	out := c.Clone()
	out.Classification.Escalation = escalation
	return out
}

// WithUrgencyBands replaces the urgency bands.
func (c Config) WithUrgencyBands(bands []UrgencyBand) Config {
	out := c.Clone()
	out.Classification.UrgencyBands = append([]UrgencyBand(nil), bands...)
	return out
}

func cloneRules(in map[string]ThresholdRule) map[string]ThresholdRule {
	if in == nil {
		return nil
	}
	out := make(map[string]ThresholdRule, len(in))
	for k, v := range in {
		rule := ThresholdRule{}
		if v.Min != nil {
			min := *v.Min
			rule.Min = &min
		}
		if v.Max != nil {
			max := *v.Max
			rule.Max = &max
		}
		out[k] = rule
	}
	return out
}

func cloneWeights(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
