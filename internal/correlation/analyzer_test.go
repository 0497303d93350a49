package correlation

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/cache"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/models"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testWindow() models.AnalysisWindow {
	return models.AnalysisWindow{Start: base, End: base.Add(12 * time.Hour), Granularity: models.GranularityHour}
}

func newAnalyzer(t *testing.T, matrices *cache.Cache[Matrix]) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(config.Default().Correlation, matrices, quietLogger())
	require.NoError(t, err)
	return a
}

func seriesFrom(sensorID string, values []float64, offset time.Duration) []models.TimeSeriesPoint {
	points := make([]models.TimeSeriesPoint, len(values))
	for i, v := range values {
		points[i] = models.TimeSeriesPoint{
			Timestamp: base.Add(offset + time.Duration(i)*5*time.Minute),
			Value:     v,
			SensorID:  sensorID,
		}
	}
	return points
}

func noise(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = 20 + rng.NormFloat64()*3
	}
	return values
}

// laggedPair returns a chiller series and a pump series that repeats it,
// scaled, ten minutes later.
func laggedPair() map[string][]models.TimeSeriesPoint {
	chiller := noise(1, 60)
	pump := make([]float64, len(chiller))
	for i, v := range chiller {
		pump[i] = 2*v + 5
	}
	return map[string][]models.TimeSeriesPoint{
		"chiller-1": seriesFrom("chiller-1", chiller, 0),
		"pump-1":    seriesFrom("pump-1", pump, 10*time.Minute),
		"light-1":   seriesFrom("light-1", noise(99, 60), 0),
	}
}

func TestBuildMatrixIsSymmetricWithUnitDiagonal(t *testing.T) {
	a := newAnalyzer(t, nil)
	series := map[string][]models.TimeSeriesPoint{
		"a": seriesFrom("a", noise(1, 48), 0),
		"b": seriesFrom("b", noise(2, 48), 0),
		"c": seriesFrom("c", noise(3, 48), 0),
	}

	m, err := a.BuildMatrix(context.Background(), series, testWindow())
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b", "c"}, m.SensorIDs)
	for i := range m.SensorIDs {
		assert.Equal(t, 1.0, m.Coefficients[i][i])
		for j := range m.SensorIDs {
			assert.Equal(t, m.Coefficients[i][j], m.Coefficients[j][i])
			assert.LessOrEqual(t, math.Abs(m.Coefficients[i][j]), 1.0)
		}
	}
}

func TestBuildMatrixDetectsLinearRelationship(t *testing.T) {
	a := newAnalyzer(t, nil)
	values := noise(5, 48)
	inverse := make([]float64, len(values))
	for i, v := range values {
		inverse[i] = 100 - v
	}
	series := map[string][]models.TimeSeriesPoint{
		"supply": seriesFrom("supply", values, 0),
		"return": seriesFrom("return", inverse, 0),
	}

	m, err := a.BuildMatrix(context.Background(), series, testWindow())
	require.NoError(t, err)

	r, ok := m.At("supply", "return")
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)

	_, ok = m.At("supply", "missing")
	assert.False(t, ok)
}

func TestBuildMatrixInsufficientOverlapIsZero(t *testing.T) {
	a := newAnalyzer(t, nil)
	series := map[string][]models.TimeSeriesPoint{
		"early": seriesFrom("early", noise(1, 10), 0),
		"late":  seriesFrom("late", noise(2, 10), 24*time.Hour),
	}

	m, err := a.BuildMatrix(context.Background(), series, testWindow())
	require.NoError(t, err)

	r, _ := m.At("early", "late")
	assert.Zero(t, r)
}

func TestBuildMatrixCacheHitReturnsIdenticalCopy(t *testing.T) {
	matrices := cache.New[Matrix]("correlation", cache.Config{Size: 10, TTL: time.Minute}, nil, quietLogger())
	a := newAnalyzer(t, matrices)
	series := laggedPair()

	first, err := a.BuildMatrix(context.Background(), series, testWindow())
	require.NoError(t, err)

	first.Coefficients[0][1] = 42

	second, err := a.BuildMatrix(context.Background(), series, testWindow())
	require.NoError(t, err)
	third, err := a.BuildMatrix(context.Background(), series, testWindow())
	require.NoError(t, err)

	assert.Equal(t, second, third)
	assert.NotEqual(t, 42.0, second.Coefficients[0][1])

	stats := matrices.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestBuildMatrixRejectsInvertedWindow(t *testing.T) {
	a := newAnalyzer(t, nil)
	window := models.AnalysisWindow{Start: base.Add(time.Hour), End: base}

	_, err := a.BuildMatrix(context.Background(), laggedPair(), window)
	require.Error(t, err)
}

func TestAnnotateFindsLaggedCorrelation(t *testing.T) {
	a := newAnalyzer(t, nil)
	series := laggedPair()
	patterns := []models.DetectedPattern{
		{ID: "p1", SensorID: "chiller-1", PatternType: models.PatternTypeAnomaly, Severity: models.SeverityCritical},
	}

	annotated, err := a.Annotate(context.Background(), patterns, series, testWindow())
	require.NoError(t, err)
	require.Len(t, annotated, 1)

	factors := annotated[0].Metadata.CorrelationFactors
	require.Len(t, factors, 1)
	assert.Equal(t, "pump-1", factors[0].RelatedSensorID)
	assert.InDelta(t, 1.0, factors[0].CorrelationCoefficient, 1e-9)
	assert.Equal(t, 10.0, factors[0].TimeLagMinutes)
	assert.InDelta(t, 100.0, factors[0].Confidence, 1e-6)

	// Only chiller-1 has a pattern, so the type is unchanged.
	assert.Equal(t, models.PatternTypeAnomaly, annotated[0].PatternType)
	assert.Empty(t, patterns[0].Metadata.CorrelationFactors)
}

func TestAnnotateReportsNegativeLagFromFollower(t *testing.T) {
	a := newAnalyzer(t, nil)
	series := laggedPair()
	patterns := []models.DetectedPattern{
		{ID: "p1", SensorID: "chiller-1", PatternType: models.PatternTypeAnomaly},
		{ID: "p2", SensorID: "pump-1", PatternType: models.PatternTypeAnomaly},
	}

	annotated, err := a.Annotate(context.Background(), patterns, series, testWindow())
	require.NoError(t, err)

	require.Len(t, annotated[1].Metadata.CorrelationFactors, 1)
	assert.Equal(t, -10.0, annotated[1].Metadata.CorrelationFactors[0].TimeLagMinutes)

	for _, p := range annotated {
		assert.Equal(t, models.PatternTypeCorrelation, p.PatternType)
	}
}

func TestAnnotateDisabledReturnsCopy(t *testing.T) {
	cfg := config.Default().WithCorrelationEnabled(false).Correlation
	a, err := NewAnalyzer(cfg, nil, quietLogger())
	require.NoError(t, err)

	patterns := []models.DetectedPattern{{ID: "p1", SensorID: "chiller-1", PatternType: models.PatternTypeAnomaly}}
	annotated, err := a.Annotate(context.Background(), patterns, laggedPair(), testWindow())
	require.NoError(t, err)

	assert.Equal(t, patterns, annotated)
}

func TestAnnotateHonoursCancellation(t *testing.T) {
	a := newAnalyzer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	patterns := []models.DetectedPattern{{ID: "p1", SensorID: "chiller-1"}}
	_, err := a.Annotate(ctx, patterns, laggedPair(), testWindow())
	require.Error(t, err)
}

func TestBucketOf(t *testing.T) {
	interval := 5 * time.Minute
	assert.Equal(t, bucketOf(base, interval), bucketOf(base.Add(4*time.Minute), interval))
	assert.Equal(t, bucketOf(base, interval)+1, bucketOf(base.Add(5*time.Minute), interval))
	assert.Equal(t, int64(-1), bucketOf(time.Unix(0, 0).Add(-time.Second), interval))
}

func TestLagOrder(t *testing.T) {
	assert.Equal(t, []int64{0, 1, -1, 2, -2}, lagOrder(2))
}

func BenchmarkBuildMatrix(b *testing.B) {
	series := make(map[string][]models.TimeSeriesPoint)
	for i := 0; i < 50; i++ {
		id := string(rune('a'+i%26)) + string(rune('a'+i/26))
		series[id] = seriesFrom(id, noise(int64(i), 100), 0)
	}
	cfg := config.Default().Correlation
	a, err := NewAnalyzer(cfg, nil, quietLogger())
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = a.BuildMatrix(context.Background(), series, testWindow())
	}
}
