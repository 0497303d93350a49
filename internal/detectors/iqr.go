package detectors

import (
	"context"
	"sort"

	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/models"
)

// IQRDetector flags readings outside the Tukey fences
// [Q1 - k·IQR, Q3 + k·IQR]. The score is the distance from the nearer
// quartile in IQR units, so it exceeds k exactly outside the fences.
type IQRDetector struct {
	baseDetector
}

func (d *IQRDetector) Analyze(ctx context.Context, series []models.TimeSeriesPoint) (*Analysis, error) {
	points, invalid, err := prepare(series, d.cfg, 0)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	analysis := d.newAnalysis(points, invalid)
	values := analysis.Values()
	tol := tolerance(values)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := statistics.Percentile(sorted, 0.25)
	median := statistics.Percentile(sorted, 0.5)
	q3 := statistics.Percentile(sorted, 0.75)
	iqr := q3 - q1

	for i := range analysis.Points {
		p := &analysis.Points[i]
		v := p.Point.Value
		p.Expected = median
		p.Deviation = v - median
		p.Scored = true

		switch {
		case v > q3:
			p.Score = standardized(v-q3, iqr, tol)
		case v < q1:
			p.Score = standardized(q1-v, iqr, tol)
		default:
			p.Score = 0
		}
	}
	return analysis, nil
}

func (d *IQRDetector) Detect(ctx context.Context, series []models.TimeSeriesPoint, window models.AnalysisWindow) ([]models.DetectedAnomaly, error) {
	return detect(ctx, d, series, window)
}
