package correlation

import (
	"sort"
	"time"

	"github.com/inferloop/patternscope/pkg/models"
)

// alignedSeries is a series resampled onto epoch-anchored buckets of a fixed
// interval, each holding the mean of its readings.
type alignedSeries struct {
	buckets []int64
	values  map[int64]float64
}

func align(points []models.TimeSeriesPoint, interval time.Duration) alignedSeries {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, p := range points {
		if !p.HasValidValue() || !p.HasValidTimestamp() {
			continue
		}
		b := bucketOf(p.Timestamp, interval)
		sums[b] += p.Value
		counts[b]++
	}

	aligned := alignedSeries{
		buckets: make([]int64, 0, len(sums)),
		values:  make(map[int64]float64, len(sums)),
	}
	for b, sum := range sums {
		aligned.buckets = append(aligned.buckets, b)
		aligned.values[b] = sum / float64(counts[b])
	}
	sort.Slice(aligned.buckets, func(i, j int) bool { return aligned.buckets[i] < aligned.buckets[j] })
	return aligned
}

// bucketOf floors t to its interval index.
func bucketOf(t time.Time, interval time.Duration) int64 {
	ns := t.UnixNano()
	b := ns / int64(interval)
	if ns < 0 && ns%int64(interval) != 0 {
		b--
	}
	return b
}
