package detectors

import (
	"context"

	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/models"
)

// ZScoreDetector flags readings more than ThresholdMultiplier standard
// deviations from the mean. Each point is scored against the mean and
// deviation of the other points, so a single outlier cannot mask itself by
// inflating the deviation of a small sample.
type ZScoreDetector struct {
	baseDetector
}

func (z *ZScoreDetector) Analyze(ctx context.Context, series []models.TimeSeriesPoint) (*Analysis, error) {
	points, invalid, err := prepare(series, z.cfg, 0)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	analysis := z.newAnalysis(points, invalid)
	values := analysis.Values()
	scoreLeaveOneOut(analysis, values, tolerance(values))
	return analysis, nil
}

func (z *ZScoreDetector) Detect(ctx context.Context, series []models.TimeSeriesPoint, window models.AnalysisWindow) ([]models.DetectedAnomaly, error) {
	return detect(ctx, z, series, window)
}

// scoreLeaveOneOut scores residuals[i] against the Welford statistics of
// every other residual. Expected is offset so Deviation stays value-based.
func scoreLeaveOneOut(analysis *Analysis, residuals []float64, tol float64) {
	var full statistics.Accumulator
	for _, r := range residuals {
		full.Add(r)
	}

	for i := range analysis.Points {
		p := &analysis.Points[i]
		baseline := full.Without(residuals[i])
		if baseline.Count() < 2 {
			continue
		}
		deviation := residuals[i] - baseline.Mean()
		p.Expected = p.Point.Value - deviation
		p.Deviation = deviation
		p.Score = standardized(deviation, baseline.StdDev(), tol)
		p.Scored = true
	}
}
