package detectors

import (
	"context"
	"time"

	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/models"
)

// SeasonalDetector removes a linear trend and a fixed-period profile before
// z-scoring, so normal diurnal swings are not flagged. The profile is the
// median residual of each phase bucket; buckets with too few samples
// contribute nothing.
type SeasonalDetector struct {
	baseDetector
	period  time.Duration
	buckets int
}

func (s *SeasonalDetector) Analyze(ctx context.Context, series []models.TimeSeriesPoint) (*Analysis, error) {
	points, invalid, err := prepare(series, s.cfg, 0)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	analysis := s.newAnalysis(points, invalid)
	values := analysis.Values()

	origin := points[0].Timestamp
	xs := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Timestamp.Sub(origin).Hours()
	}
	trend := statistics.LinearTrend(xs, values)

	residuals := make([]float64, len(points))
	phases := make([]int, len(points))
	byPhase := make([][]float64, s.buckets)
	for i, p := range points {
		residuals[i] = values[i] - trend.At(xs[i])
		phases[i] = s.phase(p.Timestamp)
		byPhase[phases[i]] = append(byPhase[phases[i]], residuals[i])
	}

	profile := make([]float64, s.buckets)
	for b, samples := range byPhase {
		if len(samples) >= constants.MinSeasonalBucketSamples {
			profile[b] = statistics.Median(samples)
		}
	}

	deseasonalized := make([]float64, len(points))
	for i := range points {
		deseasonalized[i] = residuals[i] - profile[phases[i]]
	}

	scoreLeaveOneOut(analysis, deseasonalized, tolerance(values))
	return analysis, nil
}

func (s *SeasonalDetector) Detect(ctx context.Context, series []models.TimeSeriesPoint, window models.AnalysisWindow) ([]models.DetectedAnomaly, error) {
	return detect(ctx, s, series, window)
}

// phase returns the bucket of t within the period, anchored at the Unix epoch.
func (s *SeasonalDetector) phase(t time.Time) int {
	offset := t.UnixNano() % int64(s.period)
	if offset < 0 {
		offset += int64(s.period)
	}
	bucket := int(offset * int64(s.buckets) / int64(s.period))
	if bucket >= s.buckets {
		bucket = s.buckets - 1
	}
	return bucket
}
