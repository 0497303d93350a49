package classification

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

var start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	logger, _ := test.NewNullLogger()
	c, err := NewClassifier(config.Default().Classification, logger)
	require.NoError(t, err)
	return c
}

// buildPattern creates a pattern of n points where the listed indices are
// anomalous with the given deviation.
func buildPattern(id string, n int, anomalies []int, deviation float64) models.DetectedPattern {
	anomalous := make(map[int]bool, len(anomalies))
	for _, i := range anomalies {
		anomalous[i] = true
	}

	points := make([]models.PatternDataPoint, n)
	for i := range points {
		dp := models.PatternDataPoint{
			Timestamp:     start.Add(time.Duration(i) * time.Hour),
			Value:         20,
			ExpectedValue: 20,
		}
		if anomalous[i] {
			dp.Value = 20 + deviation
			dp.Deviation = deviation
			dp.IsAnomaly = true
		}
		points[i] = dp
	}

	return models.DetectedPattern{
		ID:              id,
		Timestamp:       start,
		SensorID:        "sensor-" + id,
		EquipmentType:   constants.EquipmentHVAC,
		PatternType:     models.PatternTypeAnomaly,
		Severity:        models.SeverityWarning,
		ConfidenceScore: 80,
		DataPoints:      points,
	}
}

func indexRange(from, to int) []int {
	var out []int
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func TestClassifySuddenSpike(t *testing.T) {
	c := newClassifier(t)
	p := buildPattern("spike", 50, []int{25}, 24)
	p.Severity = models.SeverityCritical
	p.ConfidenceScore = 95

	result, err := c.ClassifyPattern(p)
	require.NoError(t, err)

	assert.Equal(t, models.ClassifiedSuddenSpike, result.ClassifiedType)
	assert.InDelta(t, 80.75, result.RiskScore, 1e-9)
	assert.Equal(t, models.UrgencyImmediate, result.UrgencyLevel)
	assert.Equal(t, 2.0, result.RecommendedResponseTime.Hours)
	assert.InDelta(t, 29.25, result.FailureProbability, 1e-9)
	assert.False(t, result.Escalated())
}

func TestClassifySustainedFailure(t *testing.T) {
	c := newClassifier(t)
	p := buildPattern("sustained", 40, indexRange(0, 36), 5)
	p.EquipmentType = "power"

	result, err := c.ClassifyPattern(p)
	require.NoError(t, err)

	assert.Equal(t, models.ClassifiedSustainedFailure, result.ClassifiedType)
	assert.InDelta(t, 75.0, result.RiskScore, 1e-9)
	assert.Equal(t, models.SeverityWarning, result.Severity)
	assert.Equal(t, models.UrgencyUrgent, result.UrgencyLevel)
	assert.InDelta(t, 57.6, result.FailureProbability, 1e-9)
}

func TestClassifyEscalatesHighRiskWarning(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c, err := NewClassifier(config.Default().Classification, logger)
	require.NoError(t, err)

	p := buildPattern("escalate", 40, indexRange(0, 36), 5)
	p.EquipmentType = constants.EquipmentPower
	p.ConfidenceScore = 100
	p.Metadata.CorrelationFactors = []models.CorrelationFactor{
		{RelatedSensorID: "pump-1", CorrelationCoefficient: 0.95, Confidence: 100},
	}

	result, err := c.ClassifyPattern(p)
	require.NoError(t, err)

	assert.InDelta(t, 90.0, result.RiskScore, 1e-9)
	assert.Equal(t, models.SeverityCritical, result.Severity)
	assert.Equal(t, models.SeverityWarning, result.OriginalSeverity)
	assert.True(t, result.Escalated())
	assert.Equal(t, models.UrgencyImmediate, result.UrgencyLevel)
	assert.Equal(t, models.SeverityWarning, p.Severity)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestEscalationIsConfigurable(t *testing.T) {
	cfg := config.Default().WithEscalation(config.EscalationConfig{}).Classification
	c, err := NewClassifier(cfg, nil)
	require.NoError(t, err)

	p := buildPattern("no-escalate", 40, indexRange(0, 36), 5)
	p.EquipmentType = constants.EquipmentPower
	p.ConfidenceScore = 100
	p.Metadata.CorrelationFactors = []models.CorrelationFactor{
		{RelatedSensorID: "pump-1", CorrelationCoefficient: 0.95, Confidence: 100},
	}

	result, err := c.ClassifyPattern(p)
	require.NoError(t, err)

	assert.Greater(t, result.RiskScore, 85.0)
	assert.Equal(t, models.SeverityWarning, result.Severity)
	assert.NotEqual(t, models.UrgencyImmediate, result.UrgencyLevel)
}

func TestClassifyTypeRules(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		name     string
		pattern  func() models.DetectedPattern
		expected models.ClassifiedType
	}{
		{
			name: "correlation and critical is cascade",
			pattern: func() models.DetectedPattern {
				p := buildPattern("cascade", 20, []int{5}, 10)
				p.PatternType = models.PatternTypeCorrelation
				p.Severity = models.SeverityCritical
				return p
			},
			expected: models.ClassifiedCascadeRisk,
		},
		{
			name: "confident factor and critical is cascade",
			pattern: func() models.DetectedPattern {
				p := buildPattern("factor", 20, []int{5}, 10)
				p.Severity = models.SeverityCritical
				p.Metadata.CorrelationFactors = []models.CorrelationFactor{{RelatedSensorID: "x", Confidence: 75}}
				return p
			},
			expected: models.ClassifiedCascadeRisk,
		},
		{
			name: "regular gaps are intermittent",
			pattern: func() models.DetectedPattern {
				return buildPattern("intermittent", 30, []int{2, 7, 12, 17, 22}, 6)
			},
			expected: models.ClassifiedIntermittentFailure,
		},
		{
			name: "rising deviation on a trend is gradual",
			pattern: func() models.DetectedPattern {
				p := buildPattern("gradual", 10, []int{8, 9}, 0)
				p.PatternType = models.PatternTypeTrend
				for i := range p.DataPoints {
					p.DataPoints[i].Deviation = float64(i + 1)
				}
				return p
			},
			expected: models.ClassifiedGradualDegradation,
		},
		{
			name: "threshold type with long run",
			pattern: func() models.DetectedPattern {
				p := buildPattern("threshold", 40, indexRange(0, 10), 8)
				p.PatternType = models.PatternTypeThreshold
				return p
			},
			expected: models.ClassifiedThresholdBreach,
		},
		{
			name: "info spike is not a sudden spike",
			pattern: func() models.DetectedPattern {
				p := buildPattern("info", 40, []int{3}, 2)
				p.Severity = models.SeverityInfo
				return p
			},
			expected: models.ClassifiedCyclicPattern,
		},
		{
			name: "unmatched anomaly is cyclic",
			pattern: func() models.DetectedPattern {
				return buildPattern("cyclic", 40, indexRange(0, 10), 4)
			},
			expected: models.ClassifiedCyclicPattern,
		},
		{
			name: "unmatched correlation maps to cascade",
			pattern: func() models.DetectedPattern {
				p := buildPattern("corr", 40, indexRange(0, 10), 4)
				p.PatternType = models.PatternTypeCorrelation
				return p
			},
			expected: models.ClassifiedCascadeRisk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.ClassifyPattern(tt.pattern())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.ClassifiedType)
		})
	}
}

func TestClassifyRejectsInvalidPatterns(t *testing.T) {
	c := newClassifier(t)

	empty := buildPattern("empty", 0, nil, 0)
	badConfidence := buildPattern("confidence", 5, []int{1}, 3)
	badConfidence.ConfidenceScore = 120
	badType := buildPattern("type", 5, []int{1}, 3)
	badType.PatternType = "bogus"

	for _, p := range []models.DetectedPattern{empty, badConfidence, badType} {
		_, err := c.ClassifyPattern(p)
		require.Error(t, err, p.ID)
		assert.True(t, errors.IsInvalidPattern(err), p.ID)
	}

	_, err := c.ClassifyPatterns([]models.DetectedPattern{buildPattern("ok", 5, []int{1}, 3), empty})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidPattern(err))
}

func TestClassifyPatternsSortedByRisk(t *testing.T) {
	c := newClassifier(t)

	low := buildPattern("low", 40, indexRange(0, 10), 4)
	low.EquipmentType = constants.EquipmentLighting
	low.Severity = models.SeverityInfo
	low.ConfidenceScore = 10

	high := buildPattern("high", 50, []int{25}, 24)
	high.Severity = models.SeverityCritical
	high.ConfidenceScore = 99

	tieA := buildPattern("tie-a", 30, []int{2, 7, 12}, 6)
	tieB := buildPattern("tie-b", 30, []int{2, 7, 12}, 6)

	results, err := c.ClassifyPatterns([]models.DetectedPattern{low, tieA, high, tieB})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "high", results[0].PatternID)
	assert.Equal(t, "tie-a", results[1].PatternID)
	assert.Equal(t, "tie-b", results[2].PatternID)
	assert.Equal(t, "low", results[3].PatternID)

	for i, r := range results {
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].RiskScore, r.RiskScore)
		}
		assert.GreaterOrEqual(t, r.RiskScore, 0.0)
		assert.LessOrEqual(t, r.RiskScore, 100.0)
		assert.GreaterOrEqual(t, r.FailureProbability, 0.0)
		assert.LessOrEqual(t, r.FailureProbability, 100.0)

		require.Len(t, r.ClassificationFactors, 5)
		for _, f := range r.ClassificationFactors {
			assert.GreaterOrEqual(t, f.Contribution, 0.0, f.FactorName)
			assert.LessOrEqual(t, f.Contribution, f.Weight, f.FactorName)
		}
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	c := newClassifier(t)
	results, err := c.ClassifyPatterns(nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSustainedOutranksSpikeInFailureProbability(t *testing.T) {
	c := newClassifier(t)

	sustained := buildPattern("sustained", 40, indexRange(0, 36), 5)
	spike := buildPattern("spike", 40, []int{10}, 5)

	rs, err := c.ClassifyPattern(sustained)
	require.NoError(t, err)
	rp, err := c.ClassifyPattern(spike)
	require.NoError(t, err)

	require.Equal(t, models.ClassifiedSustainedFailure, rs.ClassifiedType)
	require.Equal(t, models.ClassifiedSuddenSpike, rp.ClassifiedType)
	assert.Greater(t, rs.FailureProbability, rp.FailureProbability)
}

func BenchmarkClassifyPatterns(b *testing.B) {
	c, err := NewClassifier(config.Default().Classification, nil)
	require.NoError(b, err)
	c.logger.SetLevel(logrus.ErrorLevel)

	patterns := make([]models.DetectedPattern, 50)
	for i := range patterns {
		patterns[i] = buildPattern("p", 100, []int{i % 100}, 10)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.ClassifyPatterns(patterns)
	}
}

func TestEquipmentFactorUsesConfiguredDefault(t *testing.T) {
	cfg := config.Default().Classification
	cfg.DefaultCriticality = 0.25
	c, err := NewClassifier(cfg, nil)
	require.NoError(t, err)

	criticality := func(equipment string) float64 {
		p := buildPattern("eq", 40, []int{20}, 5)
		p.EquipmentType = equipment
		result, err := c.ClassifyPattern(p)
		require.NoError(t, err)
		for _, f := range result.ClassificationFactors {
			if f.FactorName == constants.FactorEquipmentCriticality {
				return f.Contribution / f.Weight
			}
		}
		t.Fatalf("no %s factor", constants.FactorEquipmentCriticality)
		return 0
	}

	assert.InDelta(t, 0.25, criticality("Boiler"), 1e-9)
	assert.InDelta(t, 0.9, criticality("hvac"), 1e-9)
	assert.InDelta(t, 1.0, criticality("FIRE SAFETY"), 1e-9)
}
