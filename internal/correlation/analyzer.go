// Package correlation measures how sensors move together and annotates
// patterns with the sensors they are strongly correlated with.
package correlation

import (
	"context"
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/cache"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// Matrix is a symmetric Pearson correlation matrix with a unit diagonal.
// Rows and columns follow SensorIDs, which are sorted.
type Matrix struct {
	SensorIDs    []string    `json:"sensor_ids"`
	Coefficients [][]float64 `json:"coefficients"`
}

// At returns the coefficient of two sensors.
func (m Matrix) At(a, b string) (float64, bool) {
	i := sort.SearchStrings(m.SensorIDs, a)
	j := sort.SearchStrings(m.SensorIDs, b)
	if i >= len(m.SensorIDs) || m.SensorIDs[i] != a || j >= len(m.SensorIDs) || m.SensorIDs[j] != b {
		return 0, false
	}
	return m.Coefficients[i][j], true
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	out := Matrix{
		SensorIDs:    append([]string(nil), m.SensorIDs...),
		Coefficients: make([][]float64, len(m.Coefficients)),
	}
	for i, row := range m.Coefficients {
		out.Coefficients[i] = append([]float64(nil), row...)
	}
	return out
}

// Analyzer builds correlation matrices and annotates patterns. It holds no
// per-request state; the matrix cache is optional.
type Analyzer struct {
	config config.CorrelationConfig
	cache  *cache.Cache[Matrix]
	logger *logrus.Logger
}

// NewAnalyzer creates an analyzer. matrices may be nil to disable caching.
func NewAnalyzer(cfg config.CorrelationConfig, matrices *cache.Cache[Matrix], logger *logrus.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Analyzer{config: cfg, cache: matrices, logger: logger}, nil
}

// BuildMatrix correlates every pair of sensors over their aligned series.
// Results are cached by sensor ids, window and data; a hit skips the
// computation and returns a copy equal to the original result.
func (a *Analyzer) BuildMatrix(ctx context.Context, series map[string][]models.TimeSeriesPoint, window models.AnalysisWindow) (Matrix, error) {
	if err := window.Validate(); err != nil {
		return Matrix{}, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidTimeRange, err.Error())
	}

	ids := lo.Keys(series)
	sort.Strings(ids)

	compute := func() (Matrix, error) {
		return a.computeMatrix(ctx, ids, series)
	}

	if a.cache == nil {
		return compute()
	}

	key := matrixKey(ids, series, window)
	matrix, hit, err := a.cache.GetOrCompute(ctx, key, compute)
	if err != nil {
		return Matrix{}, err
	}

	a.logger.WithFields(logrus.Fields{
		"sensors":   len(ids),
		"cache_hit": hit,
	}).Debug("Correlation matrix ready")

	return matrix.Clone(), nil
}

func (a *Analyzer) computeMatrix(ctx context.Context, ids []string, series map[string][]models.TimeSeriesPoint) (Matrix, error) {
	aligned := make([]alignedSeries, len(ids))
	for i, id := range ids {
		aligned[i] = align(series[id], a.config.AlignmentInterval)
	}

	coefficients := make([][]float64, len(ids))
	for i := range coefficients {
		coefficients[i] = make([]float64, len(ids))
		coefficients[i][i] = 1
	}

	for i := range ids {
		if err := ctx.Err(); err != nil {
			return Matrix{}, errors.WrapError(err, errors.ErrorTypeInternal, "CANCELLED", "correlation cancelled")
		}
		for j := i + 1; j < len(ids); j++ {
			r, overlap := laggedPearson(aligned[i], aligned[j], 0)
			if overlap < a.config.MinOverlap {
				r = 0
			}
			coefficients[i][j] = r
			coefficients[j][i] = r
		}
	}

	return Matrix{SensorIDs: ids, Coefficients: coefficients}, nil
}

// Annotate attaches a CorrelationFactor to each pattern for every other
// sensor whose best lagged coefficient exceeds the threshold. An anomaly
// pattern correlated with another sensor that also has a pattern becomes a
// correlation pattern. The input patterns are not modified.
func (a *Analyzer) Annotate(ctx context.Context, patterns []models.DetectedPattern, series map[string][]models.TimeSeriesPoint, window models.AnalysisWindow) ([]models.DetectedPattern, error) {
	out := make([]models.DetectedPattern, len(patterns))
	copy(out, patterns)
	if !a.config.Enabled || len(patterns) == 0 || len(series) < 2 {
		return out, nil
	}
	if err := window.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidTimeRange, err.Error())
	}

	ids := lo.Keys(series)
	sort.Strings(ids)
	aligned := make(map[string]alignedSeries, len(ids))
	for _, id := range ids {
		aligned[id] = align(series[id], a.config.AlignmentInterval)
	}

	withPattern := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		withPattern[p.SensorID] = true
	}

	for i, pattern := range out {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeInternal, "CANCELLED", "correlation cancelled")
		}

		source, ok := aligned[pattern.SensorID]
		if !ok {
			continue
		}

		var factors []models.CorrelationFactor
		for _, id := range ids {
			if id == pattern.SensorID {
				continue
			}
			if factor, ok := a.bestFactor(source, aligned[id], id); ok {
				factors = append(factors, factor)
			}
		}
		if len(factors) == 0 {
			continue
		}

		sort.SliceStable(factors, func(x, y int) bool {
			rx := math.Abs(factors[x].CorrelationCoefficient)
			ry := math.Abs(factors[y].CorrelationCoefficient)
			if rx != ry {
				return rx > ry
			}
			return factors[x].RelatedSensorID < factors[y].RelatedSensorID
		})

		annotated := pattern.WithCorrelationFactors(factors)
		if annotated.PatternType == models.PatternTypeAnomaly &&
			lo.SomeBy(factors, func(f models.CorrelationFactor) bool { return withPattern[f.RelatedSensorID] }) {
			annotated.PatternType = models.PatternTypeCorrelation
		}
		out[i] = annotated
	}

	return out, nil
}

// bestFactor searches lags within ±MaxLag and keeps the one maximizing |r|.
// Lags are tried in order of increasing magnitude, so ties favour the
// shortest lag.
func (a *Analyzer) bestFactor(source, related alignedSeries, relatedID string) (models.CorrelationFactor, bool) {
	steps := int64(a.config.MaxLag / a.config.AlignmentInterval)

	bestR, bestLag, bestOverlap := 0.0, int64(0), 0
	found := false
	for _, lag := range lagOrder(steps) {
		r, overlap := laggedPearson(source, related, lag)
		if overlap < a.config.MinOverlap {
			continue
		}
		if !found || math.Abs(r) > math.Abs(bestR) {
			bestR, bestLag, bestOverlap = r, lag, overlap
			found = true
		}
	}

	if !found || math.Abs(bestR) <= a.config.Threshold {
		return models.CorrelationFactor{}, false
	}

	coverage := math.Min(1, float64(bestOverlap)/float64(a.config.FullConfidenceOverlap))
	return models.CorrelationFactor{
		RelatedSensorID:        relatedID,
		CorrelationCoefficient: bestR,
		TimeLagMinutes:         float64(bestLag) * a.config.AlignmentInterval.Minutes(),
		Confidence:             100 * math.Abs(bestR) * coverage,
	}, true
}

// lagOrder returns 0, 1, -1, 2, -2, ... up to ±steps.
func lagOrder(steps int64) []int64 {
	lags := []int64{0}
	for k := int64(1); k <= steps; k++ {
		lags = append(lags, k, -k)
	}
	return lags
}

// laggedPearson correlates source bucket b with related bucket b+lag over
// the buckets present in both.
func laggedPearson(source, related alignedSeries, lag int64) (float64, int) {
	xs := make([]float64, 0, len(source.buckets))
	ys := make([]float64, 0, len(source.buckets))
	for _, b := range source.buckets {
		if y, ok := related.values[b+lag]; ok {
			xs = append(xs, source.values[b])
			ys = append(ys, y)
		}
	}
	return statistics.Pearson(xs, ys), len(xs)
}

func matrixKey(ids []string, series map[string][]models.TimeSeriesPoint, window models.AnalysisWindow) string {
	key := cache.NewKey("correlation").Window(window).Int(int64(len(ids)))
	for _, id := range ids {
		key.String(id).Series(series[id])
	}
	return key.Key()
}
