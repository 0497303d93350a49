package statistics

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// Compute returns descriptive statistics of values. NaN and infinite values
// are excluded and counted in InvalidCount. The result does not depend on
// the order of values.
func Compute(values []float64, minSampleSize int) (models.StatisticalMetrics, error) {
	if len(values) == 0 {
		return models.StatisticalMetrics{}, errors.NewEmptyDataError()
	}

	sorted, invalid := finiteSorted(values)
	if len(sorted) == 0 {
		return models.StatisticalMetrics{}, errors.NewNoValidDataError(invalid)
	}
	if len(sorted) < minSampleSize {
		return models.StatisticalMetrics{}, errors.NewInsufficientDataError(len(sorted), minSampleSize)
	}

	return describe(sorted, invalid), nil
}

// ComputeSeries is Compute over a series, additionally scoring the latest
// valid reading against the whole sample.
func ComputeSeries(points []models.TimeSeriesPoint, minSampleSize int) (models.StatisticalMetrics, error) {
	if len(points) == 0 {
		return models.StatisticalMetrics{}, errors.NewEmptyDataError()
	}

	values := make([]float64, len(points))
	latestIdx := -1
	for i, p := range points {
		values[i] = p.Value
		if !p.HasValidValue() || !p.HasValidTimestamp() {
			values[i] = math.NaN()
			continue
		}
		if latestIdx < 0 || p.Timestamp.After(points[latestIdx].Timestamp) ||
			(p.Timestamp.Equal(points[latestIdx].Timestamp) && p.Value > points[latestIdx].Value) {
			latestIdx = i
		}
	}

	metrics, err := Compute(values, minSampleSize)
	if err != nil {
		return metrics, err
	}

	latest := points[latestIdx].Value
	if metrics.StdDeviation > 0 {
		z := (latest - metrics.Mean) / metrics.StdDeviation
		metrics.ZScoreOfLatest = &z
	}
	sorted, _ := finiteSorted(values)
	rank := PercentileRank(sorted, latest)
	metrics.PercentileRank = &rank

	return metrics, nil
}

func describe(sorted []float64, invalid int) models.StatisticalMetrics {
	var acc Accumulator
	for _, v := range sorted {
		acc.Add(v)
	}

	return models.StatisticalMetrics{
		Mean:         acc.Mean(),
		StdDeviation: acc.StdDev(),
		Variance:     acc.Variance(),
		Median:       Percentile(sorted, 0.5),
		Q1:           Percentile(sorted, 0.25),
		Q3:           Percentile(sorted, 0.75),
		SampleSize:   acc.Count(),
		InvalidCount: invalid,
	}
}

// finiteSorted returns an ascending copy of the finite values and the
// number of values dropped.
func finiteSorted(values []float64) ([]float64, int) {
	sorted := make([]float64, 0, len(values))
	invalid := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			invalid++
			continue
		}
		sorted = append(sorted, v)
	}
	sort.Float64s(sorted)
	return sorted, invalid
}

// Percentile interpolates linearly between the closest ranks of an ascending
// sample; p is a fraction in [0, 1].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// PercentileRank returns the percentage of an ascending sample below x,
// counting ties as half.
func PercentileRank(sorted []float64, x float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	below := sort.SearchFloat64s(sorted, x)
	equal := 0
	for i := below; i < len(sorted) && sorted[i] == x; i++ {
		equal++
	}
	return 100 * (float64(below) + 0.5*float64(equal)) / float64(len(sorted))
}

// Median returns the sample median.
func Median(values []float64) float64 {
	median, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return median
}

// MedianAbsoluteDeviation returns median(|x - median(x)|).
func MedianAbsoluteDeviation(values []float64) float64 {
	mad, err := stats.MedianAbsoluteDeviationPopulation(values)
	if err != nil {
		return 0
	}
	return mad
}

// MeanAbsoluteDeviation returns mean(|x - center|).
func MeanAbsoluteDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v - center)
	}
	return sum / float64(len(values))
}

// CoefficientOfVariation returns σ/|μ| of values, 0 for an empty sample
// and +Inf when the mean is zero but the values vary.
func CoefficientOfVariation(values []float64) float64 {
	var acc Accumulator
	for _, v := range values {
		acc.Add(v)
	}
	if acc.Count() < 2 {
		return 0
	}
	sd := acc.StdDev()
	if acc.Mean() == 0 {
		if sd == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return sd / math.Abs(acc.Mean())
}
