package statistics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Trend is a least-squares line y = Intercept + Slope·x.
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
}

// At evaluates the line.
func (t Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// LinearTrend fits ys against xs. Fewer than two points or a constant xs
// yield a flat line through the mean.
func LinearTrend(xs, ys []float64) Trend {
	if len(xs) != len(ys) || len(xs) < 2 {
		return Trend{Intercept: mean(ys)}
	}
	if stat.Variance(xs, nil) == 0 {
		return Trend{Intercept: mean(ys)}
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	trend := Trend{Slope: beta, Intercept: alpha}
	if stat.Variance(ys, nil) > 0 {
		trend.RSquared = stat.RSquared(xs, ys, nil, alpha, beta)
	}
	return trend
}

// Pearson returns the correlation coefficient of x and y, or 0 when either
// side is constant or the lengths differ.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
