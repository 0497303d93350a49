package timescaledb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// TimescaleDBSink stores detection runs, patterns and classifications in
// PostgreSQL, optionally as TimescaleDB hypertables.
type TimescaleDBSink struct {
	config *config.TimescaleDBConfig
	db     *sql.DB
	logger *logrus.Logger
	mu     sync.RWMutex
	newID  func() uuid.UUID
}

// NewTimescaleDBSink creates a sink; call Connect before use.
func NewTimescaleDBSink(cfg *config.TimescaleDBConfig, logger *logrus.Logger) (*TimescaleDBSink, error) {
	if cfg == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "TimescaleDB config cannot be nil")
	}

	if cfg.Host == "" || cfg.Database == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "TimescaleDB host and database are required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &TimescaleDBSink{
		config: cfg,
		logger: logger,
		newID:  uuid.New,
	}, nil
}

// ConnString returns the lib/pq key/value connection string.
func ConnString(cfg config.TimescaleDBConfig) string {
	parts := []string{
		"host=" + pqValue(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		"dbname=" + pqValue(cfg.Database),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+pqValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+pqValue(cfg.Password))
	}
	if cfg.SSLMode != "" {
		parts = append(parts, "sslmode="+pqValue(cfg.SSLMode))
	}
	if cfg.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(cfg.ConnectTimeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

func pqValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

// Connect opens the pool and creates the result tables.
func (ts *TimescaleDBSink) Connect(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.db != nil {
		return nil // Already connected
	}

	db, err := sql.Open("postgres", ConnString(*ts.config))
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "Failed to open database connection")
	}

	// Configure connection pool
	db.SetMaxOpenConns(ts.config.MaxConnections)
	db.SetMaxIdleConns(ts.config.MaxIdleConns)
	db.SetConnMaxLifetime(ts.config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, ts.config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "Failed to ping database")
	}

	if err := ts.initializeSchema(ctx, db); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "Failed to initialize schema")
	}

	ts.db = db

	ts.logger.WithFields(logrus.Fields{
		"host":     ts.config.Host,
		"port":     ts.config.Port,
		"database": ts.config.Database,
	}).Info("Connected to TimescaleDB")

	return nil
}

// Close closes the connection pool.
func (ts *TimescaleDBSink) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.db == nil {
		return nil
	}

	err := ts.db.Close()
	ts.db = nil
	return err
}

// PersistResults writes one run row, its patterns and its classifications
// in a single transaction.
func (ts *TimescaleDBSink) PersistResults(ctx context.Context, result *models.DetectionResult) error {
	if result == nil {
		return errors.NewValidationError(errors.CodeInvalidInput, "Detection result cannot be nil")
	}

	ts.mu.RLock()
	db := ts.db
	ts.mu.RUnlock()

	if db == nil {
		return errors.NewStorageError(errors.CodeNotConnected, "Not connected to TimescaleDB")
	}

	if ts.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ts.config.QueryTimeout)
		defer cancel()
	}

	runID := ts.newID()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertRunSQL, runRow(runID, result, time.Now().UTC())...); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to insert detection run")
	}

	if err := copyRows(ctx, tx, "detected_patterns", patternColumns, len(result.Patterns), func(i int) []interface{} {
		return patternRow(runID, result.Patterns[i])
	}); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to insert patterns")
	}

	if err := copyRows(ctx, tx, "pattern_classifications", classificationColumns, len(result.Classifications), func(i int) []interface{} {
		return classificationRow(runID, result.Classifications[i])
	}); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to insert classifications")
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to commit transaction")
	}

	ts.logger.WithFields(logrus.Fields{
		"run_id":          runID.String(),
		"patterns":        len(result.Patterns),
		"classifications": len(result.Classifications),
	}).Info("Persisted detection run to TimescaleDB")

	return nil
}

// copyRows bulk loads n rows with COPY FROM STDIN.
func copyRows(ctx context.Context, tx *sql.Tx, table string, columns []string, n int, row func(int) []interface{}) error {
	if n == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return err
		}
	}

	_, err = stmt.ExecContext(ctx)
	return err
}

const insertRunSQL = `
	INSERT INTO detection_runs (run_id, created_at, window_start, window_end, success, processing_time_ms,
		budget_ms, sla_breached, sensors_processed, sensors_failed, cache_hit_rate, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

var patternColumns = []string{
	"run_id", "pattern_id", "detected_at", "sensor_id", "equipment_type", "floor_number",
	"pattern_type", "severity", "confidence_score", "description", "metadata",
}

var classificationColumns = []string{
	"run_id", "pattern_id", "sensor_id", "classified_type", "severity", "original_severity",
	"risk_score", "urgency_level", "failure_probability", "response_hours", "factors",
}

func runRow(runID uuid.UUID, result *models.DetectionResult, now time.Time) []interface{} {
	var perf models.PerformanceMetrics
	if result.PerformanceMetrics != nil {
		perf = *result.PerformanceMetrics
	}
	return []interface{}{
		runID.String(),
		now,
		nullTime(result.Window.Start),
		nullTime(result.Window.End),
		result.Success,
		perf.ProcessingTimeMs,
		perf.BudgetMs,
		perf.SLABreached,
		perf.SensorsProcessed,
		perf.SensorsFailed,
		perf.CacheHitRate,
		sql.NullString{String: result.Error, Valid: result.Error != ""},
	}
}

func patternRow(runID uuid.UUID, p models.DetectedPattern) []interface{} {
	metadata, _ := json.Marshal(p.Metadata)
	floor := sql.NullInt64{}
	if p.FloorNumber != nil {
		floor = sql.NullInt64{Int64: int64(*p.FloorNumber), Valid: true}
	}
	return []interface{}{
		runID.String(),
		p.ID,
		p.Timestamp,
		p.SensorID,
		p.EquipmentType,
		floor,
		string(p.PatternType),
		string(p.Severity),
		p.ConfidenceScore,
		p.Description,
		string(metadata),
	}
}

func classificationRow(runID uuid.UUID, c models.ClassificationResult) []interface{} {
	factors, _ := json.Marshal(c.ClassificationFactors)
	return []interface{}{
		runID.String(),
		c.PatternID,
		c.SensorID,
		string(c.ClassifiedType),
		string(c.Severity),
		string(c.OriginalSeverity),
		c.RiskScore,
		string(c.UrgencyLevel),
		c.FailureProbability,
		c.RecommendedResponseTime.Hours,
		string(factors),
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// schemaStatements returns the DDL executed on connect.
func schemaStatements(hypertables bool) []string {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS detection_runs (
		run_id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		window_start TIMESTAMPTZ,
		window_end TIMESTAMPTZ,
		success BOOLEAN NOT NULL,
		processing_time_ms DOUBLE PRECISION,
		budget_ms DOUBLE PRECISION,
		sla_breached BOOLEAN NOT NULL DEFAULT FALSE,
		sensors_processed INTEGER,
		sensors_failed INTEGER,
		cache_hit_rate DOUBLE PRECISION,
		error TEXT
	)`,
		`CREATE TABLE IF NOT EXISTS detected_patterns (
		run_id UUID NOT NULL,
		pattern_id UUID NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL,
		sensor_id VARCHAR(255) NOT NULL,
		equipment_type VARCHAR(100),
		floor_number INTEGER,
		pattern_type VARCHAR(32) NOT NULL,
		severity VARCHAR(16) NOT NULL,
		confidence_score DOUBLE PRECISION NOT NULL,
		description TEXT,
		metadata JSONB
	)`,
		`CREATE TABLE IF NOT EXISTS pattern_classifications (
		run_id UUID NOT NULL,
		pattern_id UUID NOT NULL,
		sensor_id VARCHAR(255) NOT NULL,
		classified_type VARCHAR(32) NOT NULL,
		severity VARCHAR(16) NOT NULL,
		original_severity VARCHAR(16) NOT NULL,
		risk_score DOUBLE PRECISION NOT NULL,
		urgency_level VARCHAR(16) NOT NULL,
		failure_probability DOUBLE PRECISION NOT NULL,
		response_hours DOUBLE PRECISION,
		factors JSONB
	)`,
	}

	if hypertables {
		statements = append(statements,
			`SELECT create_hypertable('detected_patterns', 'detected_at', if_not_exists => TRUE)`)
	}

	return append(statements,
		"CREATE INDEX IF NOT EXISTS idx_detected_patterns_sensor_time ON detected_patterns (sensor_id, detected_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_detected_patterns_run ON detected_patterns (run_id)",
		"CREATE INDEX IF NOT EXISTS idx_pattern_classifications_run ON pattern_classifications (run_id)",
	)
}

func (ts *TimescaleDBSink) initializeSchema(ctx context.Context, db *sql.DB) error {
	if ts.config.UseHypertables {
		if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE"); err != nil {
			return fmt.Errorf("failed to create timescaledb extension: %w", err)
		}
	}

	for _, statement := range schemaStatements(ts.config.UseHypertables) {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			if strings.HasPrefix(statement, "CREATE INDEX") || strings.HasPrefix(statement, "SELECT") {
				ts.logger.WithError(err).Warn("Failed to apply optional schema statement")
				continue
			}
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return nil
}
