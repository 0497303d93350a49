package statistics

import "math"

// Accumulator holds Welford's running mean and sum of squared deviations.
// The zero value is an empty accumulator. It is a value type: copying it
// snapshots the state, which detectors use to derive leave-one-out
// statistics with a single Remove.
type Accumulator struct {
	n    int
	mean float64
	m2   float64
}

// Add includes x.
func (a *Accumulator) Add(x float64) {
	a.n++
	delta := x - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (x - a.mean)
}

// Remove excludes a previously added x.
func (a *Accumulator) Remove(x float64) {
	if a.n <= 1 {
		*a = Accumulator{}
		return
	}
	newMean := a.mean
	if x != a.mean {
		newMean = (float64(a.n)*a.mean - x) / float64(a.n-1)
	}
	a.m2 -= (x - a.mean) * (x - newMean)
	if a.m2 < 0 {
		a.m2 = 0
	}
	a.mean = newMean
	a.n--
}

// Count returns the number of included values.
func (a Accumulator) Count() int { return a.n }

// Mean returns the running mean.
func (a Accumulator) Mean() float64 { return a.mean }

// Variance returns the sample (n-1) variance, 0 below two values.
func (a Accumulator) Variance() float64 {
	if a.n < 2 {
		return 0
	}
	return a.m2 / float64(a.n-1)
}

// StdDev returns the sample standard deviation.
func (a Accumulator) StdDev() float64 {
	return math.Sqrt(a.Variance())
}

// Without returns a copy of a with x removed.
func (a Accumulator) Without(x float64) Accumulator {
	a.Remove(x)
	return a
}
