package detectors

import (
	"context"

	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/models"
)

// ModifiedZScoreDetector scores 0.6745·|x - median| / MAD. When more than
// half the sample shares one value the MAD is zero and the mean absolute
// deviation, scaled by 1.253314, is used instead.
type ModifiedZScoreDetector struct {
	baseDetector
}

func (m *ModifiedZScoreDetector) Analyze(ctx context.Context, series []models.TimeSeriesPoint) (*Analysis, error) {
	points, invalid, err := prepare(series, m.cfg, 0)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	analysis := m.newAnalysis(points, invalid)
	values := analysis.Values()
	tol := tolerance(values)

	median := statistics.Median(values)
	spread := statistics.MedianAbsoluteDeviation(values) / constants.ModifiedZScoreConstant
	if spread <= tol {
		spread = constants.MeanAbsDevConstant * statistics.MeanAbsoluteDeviation(values, median)
	}

	for i := range analysis.Points {
		p := &analysis.Points[i]
		p.Expected = median
		p.Deviation = p.Point.Value - median
		p.Score = standardized(p.Deviation, spread, tol)
		p.Scored = true
	}
	return analysis, nil
}

func (m *ModifiedZScoreDetector) Detect(ctx context.Context, series []models.TimeSeriesPoint, window models.AnalysisWindow) ([]models.DetectedAnomaly, error) {
	return detect(ctx, m, series, window)
}
