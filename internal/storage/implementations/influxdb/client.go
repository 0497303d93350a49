package influxdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// defaultLookback bounds queries made without an analysis window.
const defaultLookback = 24 * time.Hour

// InfluxDBSource loads sensor readings from an InfluxDB 2.x bucket.
type InfluxDBSource struct {
	config    *config.InfluxDBConfig
	client    influxdb2.Client
	queryAPI  api.QueryAPI
	logger    *logrus.Logger
	mu        sync.Mutex
	connected bool
}

// NewInfluxDBSource creates a source; call Connect before use.
func NewInfluxDBSource(cfg *config.InfluxDBConfig, logger *logrus.Logger) (*InfluxDBSource, error) {
	if cfg == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "InfluxDB config cannot be nil")
	}

	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "InfluxDB url and bucket are required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &InfluxDBSource{
		config: cfg,
		logger: logger,
	}, nil
}

// Connect establishes connection to InfluxDB
func (s *InfluxDBSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	options := influxdb2.DefaultOptions()
	options.SetUseGZip(s.config.UseGZip)
	options.SetPrecision(time.Nanosecond)
	if s.config.Timeout > 0 {
		options.SetHTTPRequestTimeout(uint(s.config.Timeout.Seconds()))
	}

	client := influxdb2.NewClientWithOptions(s.config.URL, s.config.Token, options)

	// Test connection by pinging the server
	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "Failed to connect to InfluxDB")
	}

	if !ok {
		client.Close()
		return errors.NewStorageError(errors.CodeConnectionFailed, "InfluxDB ping failed")
	}

	s.client = client
	s.queryAPI = client.QueryAPI(s.config.Organization)
	s.connected = true

	s.logger.WithFields(logrus.Fields{
		"url":          s.config.URL,
		"organization": s.config.Organization,
		"bucket":       s.config.Bucket,
	}).Info("Connected to InfluxDB")

	return nil
}

// LoadSeries queries the readings of sensorIDs inside window.
func (s *InfluxDBSource) LoadSeries(ctx context.Context, sensorIDs []string, window models.AnalysisWindow) (*models.DetectionRequest, error) {
	s.mu.Lock()
	connected, queryAPI := s.connected, s.queryAPI
	s.mu.Unlock()

	if !connected {
		return nil, errors.NewStorageError(errors.CodeNotConnected, "Not connected to InfluxDB")
	}

	if window.IsZero() {
		end := time.Now().UTC()
		window = models.AnalysisWindow{Start: end.Add(-defaultLookback), End: end}
	}
	if err := window.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidTimeRange, "Invalid query window")
	}

	flux := BuildFluxQuery(*s.config, sensorIDs, window)
	start := time.Now()

	result, err := queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to query InfluxDB")
	}
	defer result.Close()

	req := &models.DetectionRequest{
		Series:  make(map[string][]models.TimeSeriesPoint),
		Sensors: make(map[string]models.SensorInfo),
		Window:  window,
	}
	for result.Next() {
		point, ok := s.toPoint(result.Record())
		if !ok {
			continue
		}
		req.Series[point.SensorID] = append(req.Series[point.SensorID], point)
		if point.EquipmentType != "" {
			if _, seen := req.Sensors[point.SensorID]; !seen {
				req.Sensors[point.SensorID] = models.SensorInfo{EquipmentType: point.EquipmentType}
			}
		}
	}

	if result.Err() != nil {
		return nil, errors.WrapError(result.Err(), errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to read InfluxDB result")
	}

	s.logger.WithFields(logrus.Fields{
		"sensors":     len(req.Series),
		"points":      req.PointCount(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Loaded sensor series from InfluxDB")

	return req, nil
}

// toPoint converts a Flux record; records without a sensor tag or a numeric
// value are dropped.
func (s *InfluxDBSource) toPoint(record *query.FluxRecord) (models.TimeSeriesPoint, bool) {
	sensorID, _ := record.ValueByKey(s.config.SensorTag).(string)
	if sensorID == "" {
		return models.TimeSeriesPoint{}, false
	}

	var value float64
	switch v := record.Value().(type) {
	case float64:
		value = v
	case int64:
		value = float64(v)
	case uint64:
		value = float64(v)
	default:
		s.logger.WithFields(logrus.Fields{
			"sensor_id": sensorID,
			"type":      fmt.Sprintf("%T", v),
		}).Warn("Skipping non-numeric InfluxDB value")
		return models.TimeSeriesPoint{}, false
	}

	point := models.TimeSeriesPoint{
		Timestamp: record.Time(),
		Value:     value,
		SensorID:  sensorID,
	}
	if s.config.EquipmentTag != "" {
		point.EquipmentType, _ = record.ValueByKey(s.config.EquipmentTag).(string)
	}
	return point, true
}

// Close closes the connection to InfluxDB
func (s *InfluxDBSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.client.Close()
	s.connected = false
	s.logger.Info("Disconnected from InfluxDB")

	return nil
}

// BuildFluxQuery builds the Flux query for a window. The window end is
// inclusive, so the exclusive range stop is moved one nanosecond past it.
func BuildFluxQuery(cfg config.InfluxDBConfig, sensorIDs []string, window models.AnalysisWindow) string {
	var b strings.Builder

	fmt.Fprintf(&b, `from(bucket: %s)`, quote(cfg.Bucket))
	fmt.Fprintf(&b, "\n  |> range(start: %s, stop: %s)",
		window.Start.UTC().Format(time.RFC3339Nano),
		window.End.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano))

	if cfg.Measurement != "" {
		fmt.Fprintf(&b, "\n  |> filter(fn: (r) => r._measurement == %s)", quote(cfg.Measurement))
	}
	if cfg.Field != "" {
		fmt.Fprintf(&b, "\n  |> filter(fn: (r) => r._field == %s)", quote(cfg.Field))
	}

	if len(sensorIDs) > 0 {
		clauses := make([]string, len(sensorIDs))
		for i, id := range sensorIDs {
			clauses[i] = fmt.Sprintf("r.%s == %s", cfg.SensorTag, quote(id))
		}
		fmt.Fprintf(&b, "\n  |> filter(fn: (r) => %s)", strings.Join(clauses, " or "))
	}

	columns := []string{`"_time"`, `"_value"`, quote(cfg.SensorTag)}
	if cfg.EquipmentTag != "" {
		columns = append(columns, quote(cfg.EquipmentTag))
	}
	fmt.Fprintf(&b, "\n  |> keep(columns: [%s])", strings.Join(columns, ", "))
	b.WriteString("\n  |> group(columns: [" + quote(cfg.SensorTag) + "])")
	b.WriteString("\n  |> sort(columns: [\"_time\"])")

	return b.String()
}

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + fluxEscaper.Replace(s) + `"`
}
