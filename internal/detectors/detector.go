package detectors

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// Detector finds anomalous readings in one sensor series.
type Detector interface {
	Algorithm() models.AlgorithmType
	Threshold() float64
	// Analyze scores every valid point of the series.
	Analyze(ctx context.Context, series []models.TimeSeriesPoint) (*Analysis, error)
	// Detect returns the anomalous points, ordered by timestamp.
	Detect(ctx context.Context, series []models.TimeSeriesPoint, window models.AnalysisWindow) ([]models.DetectedAnomaly, error)
}

// New returns the detector selected by cfg.Algorithm.
func New(cfg config.DetectionConfig) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := baseDetector{
		algorithm: cfg.Algorithm,
		cfg:       cfg,
		scorer:    newScorer(cfg),
	}

	switch cfg.Algorithm {
	case models.AlgorithmStatisticalZScore:
		return &ZScoreDetector{baseDetector: base}, nil
	case models.AlgorithmModifiedZScore:
		return &ModifiedZScoreDetector{baseDetector: base}, nil
	case models.AlgorithmInterquartileRange:
		return &IQRDetector{baseDetector: base}, nil
	case models.AlgorithmMovingAverage:
		return &MovingAverageDetector{baseDetector: base, windowSize: cfg.WindowSize}, nil
	case models.AlgorithmSeasonalDecomposition:
		return &SeasonalDetector{baseDetector: base, period: cfg.SeasonalPeriod, buckets: cfg.SeasonalBuckets}, nil
	default:
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig,
			fmt.Sprintf("unsupported detection algorithm %q", cfg.Algorithm))
	}
}

// ScoredPoint is one valid reading with its baseline. Points without a
// baseline (the moving average warm-up) have Scored=false and are never
// anomalous.
type ScoredPoint struct {
	Point     models.TimeSeriesPoint
	Expected  float64
	Deviation float64
	Score     float64
	Scored    bool
}

// Analysis is the per-point output of a detector.
type Analysis struct {
	Algorithm    models.AlgorithmType
	Threshold    float64
	Points       []ScoredPoint
	InvalidCount int

	scorer scorer
}

// Ratio returns score/threshold of p.
func (a *Analysis) Ratio(p ScoredPoint) float64 {
	if !p.Scored {
		return 0
	}
	return a.scorer.ratio(p.Score)
}

// IsAnomaly reports whether p exceeds the threshold.
func (a *Analysis) IsAnomaly(p ScoredPoint) bool {
	return a.Ratio(p) > 1
}

// Anomalies converts the anomalous points.
func (a *Analysis) Anomalies() []models.DetectedAnomaly {
	var anomalies []models.DetectedAnomaly
	for _, p := range a.Points {
		ratio := a.Ratio(p)
		if ratio <= 1 {
			continue
		}
		anomalies = append(anomalies, models.DetectedAnomaly{
			Timestamp:       p.Point.Timestamp,
			SensorID:        p.Point.SensorID,
			Value:           p.Point.Value,
			ExpectedValue:   p.Expected,
			Deviation:       p.Deviation,
			ConfidenceScore: a.scorer.confidence(ratio),
			Severity:        a.scorer.severity(ratio),
		})
	}
	return anomalies
}

// Values returns the point values in analysis order.
func (a *Analysis) Values() []float64 {
	values := make([]float64, len(a.Points))
	for i, p := range a.Points {
		values[i] = p.Point.Value
	}
	return values
}

type baseDetector struct {
	algorithm models.AlgorithmType
	cfg       config.DetectionConfig
	scorer    scorer
}

func (b *baseDetector) Algorithm() models.AlgorithmType { return b.algorithm }

func (b *baseDetector) Threshold() float64 { return b.cfg.ThresholdMultiplier }

func (b *baseDetector) newAnalysis(points []models.TimeSeriesPoint, invalid int) *Analysis {
	scored := make([]ScoredPoint, len(points))
	for i, p := range points {
		scored[i] = ScoredPoint{Point: p, Expected: p.Value}
	}
	return &Analysis{
		Algorithm:    b.algorithm,
		Threshold:    b.cfg.ThresholdMultiplier,
		Points:       scored,
		InvalidCount: invalid,
		scorer:       b.scorer,
	}
}

// detect runs analyze after validating the window.
func detect(ctx context.Context, d Detector, series []models.TimeSeriesPoint, window models.AnalysisWindow) ([]models.DetectedAnomaly, error) {
	if err := window.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidTimeRange, err.Error())
	}
	analysis, err := d.Analyze(ctx, series)
	if err != nil {
		return nil, err
	}
	return analysis.Anomalies(), nil
}

// prepare applies the invalid value policy and the minimum sample size and
// returns the valid points sorted by timestamp, value as tie breaker.
func prepare(series []models.TimeSeriesPoint, cfg config.DetectionConfig, minimum int) ([]models.TimeSeriesPoint, int, error) {
	if len(series) == 0 {
		return nil, 0, errors.NewEmptyDataError()
	}

	valid := make([]models.TimeSeriesPoint, 0, len(series))
	invalid := 0
	for _, p := range series {
		if !p.HasValidValue() || !p.HasValidTimestamp() {
			invalid++
			continue
		}
		valid = append(valid, p)
	}

	if invalid > 0 && cfg.InvalidValuePolicy == constants.InvalidValuePolicyReject {
		return nil, invalid, errors.NewRejectedDataError(invalid, len(series))
	}
	if len(valid) == 0 {
		return nil, invalid, errors.NewNoValidDataError(invalid)
	}
	if minimum < cfg.MinimumDataPoints {
		minimum = cfg.MinimumDataPoints
	}
	if len(valid) < minimum {
		return nil, invalid, errors.NewInsufficientDataError(len(valid), minimum)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Timestamp.Equal(valid[j].Timestamp) {
			return valid[i].Value < valid[j].Value
		}
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})
	return valid, invalid, nil
}

// tolerance is the dispersion below which a sample is treated as constant.
func tolerance(values []float64) float64 {
	scale := 0.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	return 1e-9 * math.Max(1, scale)
}

// standardized returns |deviation|/spread, treating a spread below tol as
// zero: no deviation scores 0, any deviation scores +Inf.
func standardized(deviation, spread, tol float64) float64 {
	if spread <= tol {
		if math.Abs(deviation) <= tol {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(deviation) / spread
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, "CANCELLED", "detection cancelled")
	}
	return nil
}
