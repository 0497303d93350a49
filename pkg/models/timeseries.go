package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// TimeSeriesPoint is a single sensor reading. Points are owned by the caller
// and treated as read-only by the detection core.
type TimeSeriesPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Value         float64   `json:"value"`
	SensorID      string    `json:"sensor_id"`
	EquipmentType string    `json:"equipment_type,omitempty"`
}

// UnmarshalJSON decodes a reading without failing on a bad timestamp or
// value. An unparsable timestamp is left zero and an unparsable or missing
// value becomes NaN, so the reading is counted as invalid for its own sensor.
func (p *TimeSeriesPoint) UnmarshalJSON(data []byte) error {
	var wire struct {
		Timestamp     json.RawMessage `json:"timestamp"`
		Value         json.RawMessage `json:"value"`
		SensorID      string          `json:"sensor_id"`
		EquipmentType string          `json:"equipment_type"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*p = TimeSeriesPoint{
		Timestamp:     parseTimestamp(wire.Timestamp),
		Value:         parseValue(wire.Value),
		SensorID:      wire.SensorID,
		EquipmentType: wire.EquipmentType,
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseValue(raw json.RawMessage) float64 {
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil && len(raw) > 0 && string(raw) != "null" {
		return v
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// HasValidValue reports whether the value is a finite number.
func (p TimeSeriesPoint) HasValidValue() bool {
	return !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0)
}

// HasValidTimestamp reports whether the timestamp is a usable instant.
func (p TimeSeriesPoint) HasValidTimestamp() bool {
	return !p.Timestamp.IsZero()
}

// Granularity labels the resolution of an analysis window.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Valid reports whether g is a known granularity. The empty value is valid.
func (g Granularity) Valid() bool {
	switch g {
	case "", GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return true
	default:
		return false
	}
}

// AnalysisWindow scopes and labels a detection run. Points outside the window
// are still analyzed and reported as out-of-window.
type AnalysisWindow struct {
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Granularity Granularity `json:"granularity,omitempty"`
}

// Validate checks the window invariants.
func (w AnalysisWindow) Validate() error {
	if w.End.Before(w.Start) {
		return fmt.Errorf("invalid analysis window: start %s is after end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	if !w.Granularity.Valid() {
		return fmt.Errorf("invalid analysis window granularity %q", w.Granularity)
	}
	return nil
}

// IsZero reports whether the window was left unset.
func (w AnalysisWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains reports whether t falls inside the window, bounds inclusive.
// An unset window contains every instant.
func (w AnalysisWindow) Contains(t time.Time) bool {
	if w.IsZero() {
		return true
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// Duration returns the window length.
func (w AnalysisWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// SensorInfo carries optional per-sensor metadata supplied with a request.
type SensorInfo struct {
	EquipmentType string `json:"equipment_type,omitempty"`
	FloorNumber   *int   `json:"floor_number,omitempty"`
}

// StatisticalMetrics holds descriptive statistics for one sensor series.
// Values are never mutated after creation.
type StatisticalMetrics struct {
	Mean           float64  `json:"mean"`
	StdDeviation   float64  `json:"std_deviation"`
	Median         float64  `json:"median"`
	Q1             float64  `json:"q1"`
	Q3             float64  `json:"q3"`
	Variance       float64  `json:"variance"`
	ZScoreOfLatest *float64 `json:"z_score_of_latest,omitempty"`
	PercentileRank *float64 `json:"percentile_rank,omitempty"`
	SampleSize     int      `json:"sample_size"`
	InvalidCount   int      `json:"invalid_count"`
}

// Clone returns a copy that shares no pointers with m.
func (m StatisticalMetrics) Clone() StatisticalMetrics {
	if m.ZScoreOfLatest != nil {
		z := *m.ZScoreOfLatest
		m.ZScoreOfLatest = &z
	}
	if m.PercentileRank != nil {
		rank := *m.PercentileRank
		m.PercentileRank = &rank
	}
	return m
}

// IQR returns the interquartile range.
func (m StatisticalMetrics) IQR() float64 {
	return m.Q3 - m.Q1
}
