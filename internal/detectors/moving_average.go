package detectors

import (
	"context"

	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/models"
)

// MovingAverageDetector scores each reading against the mean and standard
// deviation of the windowSize readings before it. The first windowSize
// readings only seed the window.
type MovingAverageDetector struct {
	baseDetector
	windowSize int
}

func (m *MovingAverageDetector) Analyze(ctx context.Context, series []models.TimeSeriesPoint) (*Analysis, error) {
	points, invalid, err := prepare(series, m.cfg, m.windowSize+1)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	analysis := m.newAnalysis(points, invalid)
	values := analysis.Values()
	tol := tolerance(values)

	var window statistics.Accumulator
	for i, v := range values {
		if i >= m.windowSize {
			p := &analysis.Points[i]
			p.Expected = window.Mean()
			p.Deviation = v - p.Expected
			p.Score = standardized(p.Deviation, window.StdDev(), tol)
			p.Scored = true

			window.Remove(values[i-m.windowSize])
		}
		window.Add(v)
	}
	return analysis, nil
}

func (m *MovingAverageDetector) Detect(ctx context.Context, series []models.TimeSeriesPoint, window models.AnalysisWindow) ([]models.DetectedAnomaly, error) {
	return detect(ctx, m, series, window)
}
