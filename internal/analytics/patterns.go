package analytics

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/statistics"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/models"
)

// patternNamespace scopes the name-based pattern IDs.
var patternNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://patternscope.inferloop.dev/patterns"))

// sensorDetection is the cached detector output for one sensor series.
type sensorDetection struct {
	DataPoints   []models.PatternDataPoint `json:"data_points"`
	Anomalies    []models.DetectedAnomaly  `json:"anomalies"`
	InvalidCount int                       `json:"invalid_count"`
}

// patternInput is everything needed to turn one sensor's detection into a
// pattern.
type patternInput struct {
	sensorID   string
	info       models.SensorInfo
	detection  sensorDetection
	statistics models.StatisticalMetrics
	window     models.AnalysisWindow
	config     config.DetectionConfig
}

// buildPattern returns the pattern of one sensor, or false when the sensor
// has no anomalous readings.
func buildPattern(in patternInput) (models.DetectedPattern, bool) {
	points := append([]models.PatternDataPoint(nil), in.detection.DataPoints...)
	anomalies := append([]models.DetectedAnomaly(nil), in.detection.Anomalies...)

	breaches := applyThresholdRule(in, points, &anomalies)
	if len(anomalies) == 0 {
		return models.DetectedPattern{}, false
	}

	patternType := models.PatternTypeAnomaly
	var trend statistics.Trend
	switch {
	case breaches > 0:
		patternType = models.PatternTypeThreshold
	default:
		trend = fitTrend(points)
		if trend.RSquared >= in.config.TrendMinRSquared {
			patternType = models.PatternTypeTrend
		}
	}

	severity := models.SeverityInfo
	confidence := 0.0
	first := anomalies[0].Timestamp
	for _, a := range anomalies {
		severity = models.MaxSeverity(severity, a.Severity)
		confidence = math.Max(confidence, a.ConfidenceScore)
		if a.Timestamp.Before(first) {
			first = a.Timestamp
		}
	}

	return models.DetectedPattern{
		ID:              patternID(in.sensorID, in.window, in.config.Algorithm),
		Timestamp:       first,
		SensorID:        in.sensorID,
		EquipmentType:   in.info.EquipmentType,
		FloorNumber:     in.info.FloorNumber,
		PatternType:     patternType,
		Severity:        severity,
		ConfidenceScore: confidence,
		Description:     describe(patternType, len(anomalies), breaches, trend, in.config.Algorithm),
		DataPoints:      points,
		Metadata: models.PatternMetadata{
			DetectionAlgorithm:    in.config.Algorithm,
			AnalysisWindow:        in.window,
			ThresholdUsed:         in.config.ThresholdMultiplier,
			HistoricalOccurrences: len(anomalies),
			StatisticalMetrics:    in.statistics,
		},
	}, true
}

// applyThresholdRule marks readings outside the equipment's absolute limits
// as anomalous and returns the number of breaches. Breaches not already
// flagged statistically are added as warning anomalies.
func applyThresholdRule(in patternInput, points []models.PatternDataPoint, anomalies *[]models.DetectedAnomaly) int {
	rule, ok := in.config.RuleFor(in.info.EquipmentType)
	if !ok {
		return 0
	}

	flagged := make(map[int64]bool, len(*anomalies))
	for _, a := range *anomalies {
		flagged[a.Timestamp.UnixNano()] = true
	}

	breaches := 0
	for i := range points {
		p := &points[i]
		if !rule.Breached(p.Value) {
			continue
		}
		breaches++
		p.IsAnomaly = true
		if flagged[p.Timestamp.UnixNano()] {
			continue
		}
		*anomalies = append(*anomalies, models.DetectedAnomaly{
			Timestamp:       p.Timestamp,
			SensorID:        in.sensorID,
			Value:           p.Value,
			ExpectedValue:   p.ExpectedValue,
			Deviation:       p.Deviation,
			ConfidenceScore: constants.MaxConfidence,
			Severity:        models.SeverityWarning,
		})
	}
	return breaches
}

// fitTrend fits the values against hours since the first reading.
func fitTrend(points []models.PatternDataPoint) statistics.Trend {
	if len(points) < 2 {
		return statistics.Trend{}
	}
	origin := points[0].Timestamp
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Timestamp.Sub(origin).Hours()
		ys[i] = p.Value
	}
	return statistics.LinearTrend(xs, ys)
}

func trendDirection(slope float64) string {
	switch {
	case slope > 0:
		return "increasing"
	case slope < 0:
		return "decreasing"
	default:
		return "stable"
	}
}

func describe(patternType models.PatternType, anomalies, breaches int, trend statistics.Trend, algorithm models.AlgorithmType) string {
	switch patternType {
	case models.PatternTypeThreshold:
		return fmt.Sprintf("%d readings outside operating limits, %d anomalous readings in total", breaches, anomalies)
	case models.PatternTypeTrend:
		return fmt.Sprintf("%d anomalous readings on a %s trend (%.3f/h, R²=%.2f)",
			anomalies, trendDirection(trend.Slope), trend.Slope, trend.RSquared)
	default:
		return fmt.Sprintf("%d anomalous readings detected by %s",
			anomalies, strings.ReplaceAll(string(algorithm), "_", " "))
	}
}

// patternID is stable for a sensor, window and algorithm.
func patternID(sensorID string, window models.AnalysisWindow, algorithm models.AlgorithmType) string {
	name := fmt.Sprintf("%s|%d|%d|%s", sensorID, window.Start.UnixNano(), window.End.UnixNano(), algorithm)
	return uuid.NewSHA1(patternNamespace, []byte(name)).String()
}
