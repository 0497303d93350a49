// Package classification assigns semantic types, risk scores and response
// urgency to detected patterns.
package classification

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// typeRisk is the base risk of each classified type.
var typeRisk = map[models.ClassifiedType]float64{
	models.ClassifiedSustainedFailure:    1.0,
	models.ClassifiedCascadeRisk:         0.9,
	models.ClassifiedSuddenSpike:         0.7,
	models.ClassifiedThresholdBreach:     0.6,
	models.ClassifiedGradualDegradation:  0.5,
	models.ClassifiedIntermittentFailure: 0.4,
	models.ClassifiedCyclicPattern:       0.3,
}

// failureBase is the base probability that a pattern of each type precedes
// an equipment failure.
var failureBase = map[models.ClassifiedType]float64{
	models.ClassifiedSustainedFailure:    0.8,
	models.ClassifiedCascadeRisk:         0.75,
	models.ClassifiedGradualDegradation:  0.6,
	models.ClassifiedIntermittentFailure: 0.5,
	models.ClassifiedThresholdBreach:     0.45,
	models.ClassifiedSuddenSpike:         0.3,
	models.ClassifiedCyclicPattern:       0.2,
}

// Classifier turns detected patterns into classification results. It keeps
// no state between calls and is safe for concurrent use.
type Classifier struct {
	config config.ClassificationConfig
	bands  []config.UrgencyBand
	logger *logrus.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(cfg config.ClassificationConfig, logger *logrus.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	bands := append([]config.UrgencyBand(nil), cfg.UrgencyBands...)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].MinRisk > bands[j].MinRisk })

	return &Classifier{config: cfg, bands: bands, logger: logger}, nil
}

// ClassifyPattern classifies one pattern. Malformed patterns fail with an
// InvalidPatternError; the pattern itself is never modified.
func (c *Classifier) ClassifyPattern(p models.DetectedPattern) (models.ClassificationResult, error) {
	if err := validatePattern(p); err != nil {
		return models.ClassificationResult{}, err
	}

	classified := c.classifyType(p)
	factors := c.riskFactors(p, classified)

	risk := 0.0
	for _, f := range factors {
		risk += f.Contribution
	}
	risk = clamp(risk*constants.MaxRiskScore, 0, constants.MaxRiskScore)

	severity := c.escalate(p.Severity, risk)
	band := c.urgencyBand(risk, severity)

	result := models.ClassificationResult{
		PatternID:             p.ID,
		SensorID:              p.SensorID,
		EquipmentType:         p.EquipmentType,
		OriginalType:          p.PatternType,
		ClassifiedType:        classified,
		Severity:              severity,
		OriginalSeverity:      p.Severity,
		ConfidenceScore:       p.ConfidenceScore,
		ClassificationFactors: factors,
		RiskScore:             risk,
		UrgencyLevel:          band.Level,
		FailureProbability:    failureProbability(classified, p.ConfidenceScore, severity),
		RecommendedResponseTime: models.ResponseTime{
			Hours:          band.ResponseHours,
			Description:    UrgencyDescription(band.Level),
			BusinessImpact: BusinessImpact(p.EquipmentType, band.Level),
		},
	}

	if result.Escalated() {
		c.logger.WithFields(logrus.Fields{
			"pattern_id": p.ID,
			"sensor_id":  p.SensorID,
			"from":       p.Severity,
			"to":         severity,
			"risk_score": risk,
		}).Info("Escalated pattern severity")
	}

	return result, nil
}

// ClassifyPatterns classifies every pattern and sorts the results by risk
// score descending. Ties keep input order.
func (c *Classifier) ClassifyPatterns(patterns []models.DetectedPattern) ([]models.ClassificationResult, error) {
	results := make([]models.ClassificationResult, 0, len(patterns))
	for i, p := range patterns {
		result, err := c.ClassifyPattern(p)
		if err != nil {
			var appErr *errors.AppError
			if errors.As(err, &appErr) {
				return nil, appErr.WithContext("index", i)
			}
			return nil, err
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RiskScore > results[j].RiskScore
	})
	return results, nil
}

func validatePattern(p models.DetectedPattern) error {
	switch {
	case len(p.DataPoints) == 0:
		return errors.NewInvalidPatternError(p.ID, "pattern has no data points")
	case math.IsNaN(p.ConfidenceScore) || p.ConfidenceScore < 0 || p.ConfidenceScore > constants.MaxConfidence:
		return errors.NewInvalidPatternError(p.ID, fmt.Sprintf("confidence %v outside [0, 100]", p.ConfidenceScore))
	case !p.PatternType.Valid():
		return errors.NewInvalidPatternError(p.ID, fmt.Sprintf("unknown pattern type %q", p.PatternType))
	case !p.Severity.Valid():
		return errors.NewInvalidPatternError(p.ID, fmt.Sprintf("unknown severity %q", p.Severity))
	}
	return nil
}

// classifyType applies the type rules in priority order; the first match
// wins.
func (c *Classifier) classifyType(p models.DetectedPattern) models.ClassifiedType {
	switch {
	case c.isCascade(p):
		return models.ClassifiedCascadeRisk
	case c.isSustained(p):
		return models.ClassifiedSustainedFailure
	case c.isIntermittent(p):
		return models.ClassifiedIntermittentFailure
	case c.isGradual(p):
		return models.ClassifiedGradualDegradation
	case c.isSpike(p):
		return models.ClassifiedSuddenSpike
	case p.PatternType == models.PatternTypeThreshold:
		return models.ClassifiedThresholdBreach
	}

	switch p.PatternType {
	case models.PatternTypeTrend:
		return models.ClassifiedGradualDegradation
	case models.PatternTypeCorrelation:
		return models.ClassifiedCascadeRisk
	default:
		return models.ClassifiedCyclicPattern
	}
}

func (c *Classifier) isCascade(p models.DetectedPattern) bool {
	if p.Severity != models.SeverityCritical {
		return false
	}
	if p.PatternType == models.PatternTypeCorrelation {
		return true
	}
	for _, f := range p.Metadata.CorrelationFactors {
		if f.Confidence > c.config.CascadeFactorConfidence {
			return true
		}
	}
	return false
}

func (c *Classifier) isSustained(p models.DetectedPattern) bool {
	n := len(p.DataPoints)
	if n < c.config.SustainedMinPoints {
		return false
	}
	deviations := anomalousDeviations(p)
	if float64(len(deviations))/float64(n) <= c.config.SustainedAnomalyFraction {
		return false
	}
	return statistics.CoefficientOfVariation(deviations) <= c.config.SustainedDeviationCV
}

func (c *Classifier) isIntermittent(p models.DetectedPattern) bool {
	indices := anomalyIndices(p)
	if len(indices) < c.config.IntermittentMinOccurrences || len(indices) < 2 {
		return false
	}
	gaps := make([]float64, 0, len(indices)-1)
	for i := 1; i < len(indices); i++ {
		gap := indices[i] - indices[i-1]
		if gap == 1 {
			return false
		}
		gaps = append(gaps, float64(gap))
	}
	return statistics.CoefficientOfVariation(gaps) <= c.config.IntermittentGapCV
}

func (c *Classifier) isGradual(p models.DetectedPattern) bool {
	if p.PatternType != models.PatternTypeTrend || len(p.DataPoints) < 2 {
		return false
	}
	points := sortedPoints(p)
	rising := 0
	for i := 1; i < len(points); i++ {
		if math.Abs(points[i].Deviation) >= math.Abs(points[i-1].Deviation) {
			rising++
		}
	}
	return float64(rising)/float64(len(points)-1) >= c.config.GradualMonotonicFraction
}

func (c *Classifier) isSpike(p models.DetectedPattern) bool {
	k := p.AnomalyCount()
	if k == 0 || k > c.config.SpikeMaxPoints {
		return false
	}
	if float64(k)/float64(len(p.DataPoints)) > c.config.SpikeMaxFraction {
		return false
	}
	return p.Severity.Rank() >= models.SeverityWarning.Rank()
}

// riskFactors returns the five weighted factors. Each contribution lies in
// [0, weight].
func (c *Classifier) riskFactors(p models.DetectedPattern, classified models.ClassifiedType) []models.ClassificationFactor {
	evidence := 0.0
	for _, f := range p.Metadata.CorrelationFactors {
		evidence = math.Max(evidence, f.Confidence/constants.MaxConfidence)
	}

	return []models.ClassificationFactor{
		factor(constants.FactorStatisticalConfidence, constants.WeightStatisticalConfidence, p.ConfidenceScore/constants.MaxConfidence),
		factor(constants.FactorSeverityLevel, constants.WeightSeverityLevel, severityScore(p.Severity)),
		factor(constants.FactorEquipmentCriticality, constants.WeightEquipmentCriticality, EquipmentCriticality(c.config.EquipmentCriticality, p.EquipmentType, c.config.DefaultCriticality)),
		factor(constants.FactorPatternTypeRisk, constants.WeightPatternTypeRisk, typeRisk[classified]),
		factor(constants.FactorCorrelationEvidence, constants.WeightCorrelationEvidence, evidence),
	}
}

func factor(name string, weight, score float64) models.ClassificationFactor {
	return models.ClassificationFactor{
		FactorName:   name,
		Weight:       weight,
		Contribution: weight * clamp(score, 0, 1),
	}
}

// escalate raises severity one level when risk exceeds the configured
// threshold for that level. A zero threshold disables the rule. Severity is
// never lowered.
func (c *Classifier) escalate(severity models.Severity, risk float64) models.Severity {
	esc := c.config.Escalation
	switch {
	case severity == models.SeverityWarning && esc.WarningToCritical > 0 && risk > esc.WarningToCritical:
		return models.SeverityCritical
	case severity == models.SeverityInfo && esc.InfoToWarning > 0 && risk > esc.InfoToWarning:
		return models.SeverityWarning
	}
	return severity
}

// urgencyBand returns the highest band whose conditions hold, falling back
// to the lowest band.
func (c *Classifier) urgencyBand(risk float64, severity models.Severity) config.UrgencyBand {
	for _, band := range c.bands {
		if risk < band.MinRisk {
			continue
		}
		if band.RequiresCritical && severity != models.SeverityCritical {
			continue
		}
		return band
	}
	return c.bands[len(c.bands)-1]
}

func failureProbability(classified models.ClassifiedType, confidence float64, severity models.Severity) float64 {
	p := failureBase[classified] *
		(0.5 + 0.5*confidence/constants.MaxConfidence) *
		severityMultiplier(severity) * 100
	return clamp(p, 0, 100)
}

func severityScore(s models.Severity) float64 {
	switch s {
	case models.SeverityCritical:
		return 1.0
	case models.SeverityWarning:
		return 0.6
	default:
		return 0.3
	}
}

func severityMultiplier(s models.Severity) float64 {
	switch s {
	case models.SeverityCritical:
		return 1.0
	case models.SeverityWarning:
		return 0.8
	default:
		return 0.6
	}
}

func anomalyIndices(p models.DetectedPattern) []int {
	var indices []int
	for i, dp := range sortedPoints(p) {
		if dp.IsAnomaly {
			indices = append(indices, i)
		}
	}
	return indices
}

func anomalousDeviations(p models.DetectedPattern) []float64 {
	var deviations []float64
	for _, dp := range p.DataPoints {
		if dp.IsAnomaly {
			deviations = append(deviations, math.Abs(dp.Deviation))
		}
	}
	return deviations
}

// sortedPoints returns the data points in timestamp order without touching
// the pattern.
func sortedPoints(p models.DetectedPattern) []models.PatternDataPoint {
	points := append([]models.PatternDataPoint(nil), p.DataPoints...)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
