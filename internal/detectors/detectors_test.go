package detectors

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig(algorithm models.AlgorithmType) config.DetectionConfig {
	return config.Default().WithAlgorithm(algorithm).WithMinimumDataPoints(5).Detection
}

func createSeries(sensorID string, values []float64, step time.Duration) []models.TimeSeriesPoint {
	points := make([]models.TimeSeriesPoint, len(values))
	for i, v := range values {
		points[i] = models.TimeSeriesPoint{
			Timestamp: testStart.Add(time.Duration(i) * step),
			Value:     v,
			SensorID:  sensorID,
		}
	}
	return points
}

func createNoisySeries(n int, seed int64, spikes map[int]float64) []models.TimeSeriesPoint {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = 50 + rng.NormFloat64()*2
		if spike, ok := spikes[i]; ok {
			values[i] += spike
		}
	}
	return createSeries("sensor-noisy", values, time.Minute)
}

func mustDetector(t *testing.T, cfg config.DetectionConfig) Detector {
	t.Helper()
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func TestNewSelectsStrategy(t *testing.T) {
	for _, algorithm := range models.Algorithms() {
		d := mustDetector(t, testConfig(algorithm))
		assert.Equal(t, algorithm, d.Algorithm())
		assert.Equal(t, config.DefaultThreshold(algorithm), d.Threshold())
	}

	cfg := testConfig(models.AlgorithmStatisticalZScore)
	cfg.Algorithm = "wavelet"
	_, err := New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfiguration)
}

func TestZScoreFlagsOutlierInSmallSample(t *testing.T) {
	values := []float64{20.5, 20.7, 20.9, 21.0, 20.6, 20.8, 21.1, 20.9, 20.7, 45.0}
	series := createSeries("temp-1", values, 5*time.Minute)

	anomalies, err := mustDetector(t, testConfig(models.AlgorithmStatisticalZScore)).
		Detect(context.Background(), series, models.AnalysisWindow{})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)

	anomaly := anomalies[0]
	assert.Equal(t, 45.0, anomaly.Value)
	assert.Equal(t, "temp-1", anomaly.SensorID)
	assert.Equal(t, models.SeverityCritical, anomaly.Severity)
	assert.Greater(t, anomaly.ConfidenceScore, 90.0)
	assert.InDelta(t, 20.8, anomaly.ExpectedValue, 0.01)
	assert.InDelta(t, 24.2, anomaly.Deviation, 0.01)
}

func TestConstantSeriesHasNoAnomalies(t *testing.T) {
	values := make([]float64, 48)
	for i := range values {
		values[i] = 21.5
	}
	series := createSeries("flat", values, time.Hour)

	for _, algorithm := range models.Algorithms() {
		t.Run(string(algorithm), func(t *testing.T) {
			anomalies, err := mustDetector(t, testConfig(algorithm)).
				Detect(context.Background(), series, models.AnalysisWindow{})
			require.NoError(t, err)
			assert.Empty(t, anomalies)
		})
	}
}

func TestAnomalyCountNonIncreasingInThreshold(t *testing.T) {
	series := createNoisySeries(200, 42, map[int]float64{20: 9, 75: -12, 140: 25, 141: 6})
	multipliers := []float64{1.0, 1.5, 2.0, 3.0, 4.0, 6.0}

	for _, algorithm := range models.Algorithms() {
		t.Run(string(algorithm), func(t *testing.T) {
			previous := math.MaxInt
			for _, k := range multipliers {
				cfg := testConfig(algorithm)
				cfg.ThresholdMultiplier = k
				analysis, err := mustDetector(t, cfg).Analyze(context.Background(), series)
				require.NoError(t, err)

				count := len(analysis.Anomalies())
				assert.LessOrEqual(t, count, previous, "threshold %v", k)
				previous = count
			}
		})
	}
}

func TestDetectionIsOrderInvariant(t *testing.T) {
	series := createNoisySeries(120, 9, map[int]float64{30: 15, 90: -15})
	shuffled := append([]models.TimeSeriesPoint(nil), series...)
	rand.New(rand.NewSource(3)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for _, algorithm := range models.Algorithms() {
		t.Run(string(algorithm), func(t *testing.T) {
			d := mustDetector(t, testConfig(algorithm))
			want, err := d.Detect(context.Background(), series, models.AnalysisWindow{})
			require.NoError(t, err)
			got, err := d.Detect(context.Background(), shuffled, models.AnalysisWindow{})
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.NotEmpty(t, want)
		})
	}
}

func TestEmptyAndInsufficientInput(t *testing.T) {
	d := mustDetector(t, testConfig(models.AlgorithmStatisticalZScore))

	_, err := d.Detect(context.Background(), nil, models.AnalysisWindow{})
	require.Error(t, err)
	assert.True(t, errors.IsEmptyData(err))
	assert.Equal(t, "No data points provided", errors.UserMessage(err))

	_, err = d.Detect(context.Background(), createSeries("s", []float64{1, 2}, time.Minute), models.AnalysisWindow{})
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientData(err))
	assert.Contains(t, errors.UserMessage(err), "Insufficient data points")
	assert.Equal(t, "Insufficient data points: got 2, need at least 5", errors.UserMessage(err))
}

func TestMovingAverageNeedsFullWindow(t *testing.T) {
	cfg := testConfig(models.AlgorithmMovingAverage)
	series := createSeries("s", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, time.Minute)

	_, err := mustDetector(t, cfg).Detect(context.Background(), series, models.AnalysisWindow{})
	require.Error(t, err)
	assert.Equal(t, "Insufficient data points: got 10, need at least 11", errors.UserMessage(err))
}

func TestMovingAverageWarmupIsNotScored(t *testing.T) {
	values := []float64{10, 10.2, 9.8, 10.1, 9.9, 10, 10.2, 9.8, 10.1, 9.9, 30, 10}
	analysis, err := mustDetector(t, testConfig(models.AlgorithmMovingAverage)).
		Analyze(context.Background(), createSeries("s", values, time.Minute))
	require.NoError(t, err)

	for i, p := range analysis.Points {
		assert.Equal(t, i >= 10, p.Scored, "point %d", i)
	}
	anomalies := analysis.Anomalies()
	require.NotEmpty(t, anomalies)
	assert.Equal(t, 30.0, anomalies[0].Value)
	assert.Equal(t, models.SeverityCritical, anomalies[0].Severity)
}

func TestInvalidValuePolicy(t *testing.T) {
	values := []float64{20, 21, math.NaN(), 20.5, math.Inf(1), 20.8, 21.2, 20.1}
	series := createSeries("s", values, time.Minute)
	series = append(series, models.TimeSeriesPoint{SensorID: "s", Value: 20})

	cfg := testConfig(models.AlgorithmStatisticalZScore)
	analysis, err := mustDetector(t, cfg).Analyze(context.Background(), series)
	require.NoError(t, err)
	assert.Len(t, analysis.Points, 6)
	assert.Equal(t, 3, analysis.InvalidCount)

	cfg.InvalidValuePolicy = constants.InvalidValuePolicyReject
	_, err = mustDetector(t, cfg).Analyze(context.Background(), series)
	require.Error(t, err)
	assert.True(t, errors.IsNoValidData(err))

	allInvalid := createSeries("s", []float64{math.NaN(), math.NaN()}, time.Minute)
	_, err = mustDetector(t, testConfig(models.AlgorithmStatisticalZScore)).Analyze(context.Background(), allInvalid)
	assert.True(t, errors.IsNoValidData(err))
}

func TestModifiedZScoreFallsBackWhenMADIsZero(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5, 5, 5, 9}
	anomalies, err := mustDetector(t, testConfig(models.AlgorithmModifiedZScore)).
		Detect(context.Background(), createSeries("s", values, time.Minute), models.AnalysisWindow{})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, 9.0, anomalies[0].Value)
	assert.Equal(t, 5.0, anomalies[0].ExpectedValue)
}

func TestIQRFences(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 40}
	anomalies, err := mustDetector(t, testConfig(models.AlgorithmInterquartileRange)).
		Detect(context.Background(), createSeries("s", values, time.Minute), models.AnalysisWindow{})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, 40.0, anomalies[0].Value)
}

func TestSeasonalIgnoresDiurnalCycle(t *testing.T) {
	values := make([]float64, 72)
	for h := range values {
		values[h] = 20 + 10*math.Sin(2*math.Pi*float64(h)/24)
	}
	values[40] += 30
	series := createSeries("hvac-1", values, time.Hour)

	seasonal, err := mustDetector(t, testConfig(models.AlgorithmSeasonalDecomposition)).
		Detect(context.Background(), series, models.AnalysisWindow{})
	require.NoError(t, err)
	require.Len(t, seasonal, 1)
	assert.Equal(t, testStart.Add(40*time.Hour), seasonal[0].Timestamp)

	plain, err := mustDetector(t, testConfig(models.AlgorithmStatisticalZScore)).
		Detect(context.Background(), series, models.AnalysisWindow{})
	require.NoError(t, err)
	assert.Empty(t, plain, "diurnal swing hides the anomaly from a plain z-score")
}

func TestDetectRejectsInvertedWindow(t *testing.T) {
	window := models.AnalysisWindow{Start: testStart.Add(time.Hour), End: testStart}
	_, err := mustDetector(t, testConfig(models.AlgorithmStatisticalZScore)).
		Detect(context.Background(), createNoisySeries(10, 1, nil), window)
	require.Error(t, err)
}

func TestDetectHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mustDetector(t, testConfig(models.AlgorithmStatisticalZScore)).
		Detect(ctx, createNoisySeries(10, 1, nil), models.AnalysisWindow{})
	assert.Error(t, err)
}

func TestScorer(t *testing.T) {
	s := newScorer(config.Default().Detection)

	assert.Equal(t, 0.0, s.confidence(1))
	assert.InDelta(t, 60.0, s.confidence(1.0000001), 0.001)
	assert.InDelta(t, 80.0, s.confidence(1.5), 1e-9)
	assert.Equal(t, 100.0, s.confidence(2))
	assert.Equal(t, 100.0, s.confidence(10))
	assert.Equal(t, 100.0, s.confidence(math.Inf(1)))

	assert.Equal(t, models.SeverityInfo, s.severity(1.1))
	assert.Equal(t, models.SeverityWarning, s.severity(1.2))
	assert.Equal(t, models.SeverityWarning, s.severity(1.99))
	assert.Equal(t, models.SeverityCritical, s.severity(2))
	assert.Equal(t, models.SeverityCritical, s.severity(math.Inf(1)))

	assert.True(t, math.IsInf(s.ratio(math.Inf(1)), 1))
	assert.Equal(t, 2.0, s.ratio(6))
}

func BenchmarkZScoreDetect(b *testing.B) {
	series := createNoisySeries(1000, 1, map[int]float64{500: 20})
	d, _ := New(testConfig(models.AlgorithmStatisticalZScore))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Detect(context.Background(), series, models.AnalysisWindow{})
	}
}

func BenchmarkSeasonalDetect(b *testing.B) {
	series := createNoisySeries(1000, 1, map[int]float64{500: 20})
	d, _ := New(testConfig(models.AlgorithmSeasonalDecomposition))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Detect(context.Background(), series, models.AnalysisWindow{})
	}
}
