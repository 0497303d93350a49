// Package storage defines the persistence boundary of the detection engine:
// sources that load sensor series and sinks that persist detection results.
package storage

import (
	"context"

	"github.com/inferloop/patternscope/pkg/models"
)

// DataSource loads sensor readings for a detection run.
type DataSource interface {
	// LoadSeries returns the readings of sensorIDs inside window. An empty
	// sensorIDs loads every sensor the source knows about.
	LoadSeries(ctx context.Context, sensorIDs []string, window models.AnalysisWindow) (*models.DetectionRequest, error)
	Close() error
}

// ResultSink persists the outcome of a detection run.
type ResultSink interface {
	PersistResults(ctx context.Context, result *models.DetectionResult) error
	Close() error
}

// Sinks fans a result out to several sinks. Every sink is attempted; the
// first error is returned.
type Sinks []ResultSink

// PersistResults implements ResultSink.
func (s Sinks) PersistResults(ctx context.Context, result *models.DetectionResult) error {
	var first error
	for _, sink := range s {
		if err := sink.PersistResults(ctx, result); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close implements ResultSink.
func (s Sinks) Close() error {
	var first error
	for _, sink := range s {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
