package detectors

import (
	"math"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/models"
)

// scorer maps a raw score to a threshold ratio, confidence and severity.
type scorer struct {
	threshold     float64
	floor         float64
	warningRatio  float64
	criticalRatio float64
}

func newScorer(cfg config.DetectionConfig) scorer {
	return scorer{
		threshold:     cfg.ThresholdMultiplier,
		floor:         cfg.ConfidenceFloor,
		warningRatio:  cfg.WarningRatio,
		criticalRatio: cfg.CriticalRatio,
	}
}

func (s scorer) ratio(score float64) float64 {
	if math.IsInf(score, 1) {
		return math.Inf(1)
	}
	return score / s.threshold
}

// confidence rises linearly from the floor at the threshold to 100 at the
// critical ratio.
func (s scorer) confidence(ratio float64) float64 {
	if ratio <= 1 {
		return 0
	}
	if math.IsInf(ratio, 1) {
		return constants.MaxConfidence
	}
	c := s.floor + (constants.MaxConfidence-s.floor)*(ratio-1)/(s.criticalRatio-1)
	return math.Max(0, math.Min(constants.MaxConfidence, c))
}

func (s scorer) severity(ratio float64) models.Severity {
	switch {
	case ratio >= s.criticalRatio:
		return models.SeverityCritical
	case ratio >= s.warningRatio:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}
