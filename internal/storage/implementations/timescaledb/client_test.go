package timescaledb

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/models"
)

func TestConnString(t *testing.T) {
	cfg := config.DefaultStorageConfig().TimescaleDB
	cfg.Username = "scope"
	cfg.Password = "p@ss word"

	assert.Equal(t,
		"host=localhost port=5432 dbname=patternscope user=scope password='p@ss word' sslmode=disable connect_timeout=10",
		ConnString(cfg))
}

func TestConnStringOmitsEmptyCredentials(t *testing.T) {
	cfg := config.TimescaleDBConfig{Host: "db", Port: 6543, Database: "results"}

	assert.Equal(t, "host=db port=6543 dbname=results", ConnString(cfg))
}

func TestNewTimescaleDBSinkValidation(t *testing.T) {
	_, err := NewTimescaleDBSink(nil, nil)
	assert.Error(t, err)

	_, err = NewTimescaleDBSink(&config.TimescaleDBConfig{Host: "db"}, nil)
	assert.Error(t, err)
}

func TestPersistResultsRequiresConnection(t *testing.T) {
	cfg := config.DefaultStorageConfig().TimescaleDB
	sink, err := NewTimescaleDBSink(&cfg, nil)
	require.NoError(t, err)

	assert.Error(t, sink.PersistResults(context.Background(), &models.DetectionResult{}))
	assert.Error(t, sink.PersistResults(context.Background(), nil))
	assert.NoError(t, sink.Close())
}

func TestRows(t *testing.T) {
	runID := uuid.MustParse("7b0c6f9e-2f5a-4bb8-9a53-5d1e0f6c2a11")
	floor := 3
	ts := time.Date(2024, 1, 15, 10, 45, 0, 0, time.UTC)

	pattern := models.DetectedPattern{
		ID: "p-1", SensorID: "ahu-1", EquipmentType: "HVAC", FloorNumber: &floor, Timestamp: ts,
		PatternType: models.PatternTypeAnomaly, Severity: models.SeverityCritical, ConfidenceScore: 95,
	}
	row := patternRow(runID, pattern)
	require.Len(t, row, len(patternColumns))
	assert.Equal(t, runID.String(), row[0])
	assert.Equal(t, sql.NullInt64{Int64: 3, Valid: true}, row[5])
	assert.Equal(t, "critical", row[7])
	assert.True(t, strings.HasPrefix(row[10].(string), "{"))

	pattern.FloorNumber = nil
	assert.Equal(t, sql.NullInt64{}, patternRow(runID, pattern)[5])

	class := models.ClassificationResult{
		PatternID: "p-1", ClassifiedType: models.ClassifiedSuddenSpike, RiskScore: 80.75,
		RecommendedResponseTime: models.ResponseTime{Hours: 1},
	}
	crow := classificationRow(runID, class)
	require.Len(t, crow, len(classificationColumns))
	assert.Equal(t, "sudden_spike", crow[3])
	assert.Equal(t, 1.0, crow[9])
	assert.Equal(t, "null", crow[10])

	run := runRow(runID, &models.DetectionResult{Error: "No data points provided"}, ts)
	require.Len(t, run, 12)
	assert.Equal(t, sql.NullTime{}, run[2])
	assert.Equal(t, sql.NullString{String: "No data points provided", Valid: true}, run[11])
	assert.Equal(t, 12, strings.Count(insertRunSQL, "$"))
}

func TestSchemaStatements(t *testing.T) {
	plain := schemaStatements(false)
	for _, s := range plain {
		assert.NotContains(t, s, "create_hypertable")
	}

	hyper := schemaStatements(true)
	assert.Len(t, hyper, len(plain)+1)
	assert.Contains(t, strings.Join(hyper, ";"), "create_hypertable('detected_patterns'")
}
