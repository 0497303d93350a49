package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// FileStorage reads sensor readings from a local JSON or CSV file and writes
// detection results next to it.
type FileStorage struct {
	config *config.FileConfig
	logger *logrus.Logger
}

// NewFileStorage creates a new file storage instance
func NewFileStorage(cfg *config.FileConfig, logger *logrus.Logger) (*FileStorage, error) {
	if cfg == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidConfig, "FileConfig cannot be nil")
	}

	if cfg.InputPath == "" && cfg.OutputPath == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidConfig, "input_path or output_path is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &FileStorage{config: cfg, logger: logger}, nil
}

// LoadSeries reads the input file and groups its readings by sensor.
func (fs *FileStorage) LoadSeries(ctx context.Context, sensorIDs []string, window models.AnalysisWindow) (*models.DetectionRequest, error) {
	if fs.config.InputPath == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "No input_path configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(fs.config.InputPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("Failed to open file: %s", fs.config.InputPath))
	}
	defer file.Close()

	var req *models.DetectionRequest
	switch fs.format(fs.config.InputPath) {
	case constants.FormatCSV:
		req, err = fs.readCSV(file)
	default:
		req, err = readJSON(file)
	}
	if err != nil {
		return nil, err
	}

	req = filterSensors(req, sensorIDs)
	for id, series := range req.Series {
		if bad := lo.CountBy(series, func(p models.TimeSeriesPoint) bool { return !p.HasValidTimestamp() }); bad > 0 {
			fs.logger.WithFields(logrus.Fields{
				"path":      fs.config.InputPath,
				"sensor_id": id,
				"readings":  bad,
			}).Warn("Readings with unparsable timestamps will be counted as invalid")
		}
	}
	switch {
	case !window.IsZero():
		req.Window = window
	case req.Window.IsZero():
		req.Window = spanOf(req.Series)
	}

	fs.logger.WithFields(logrus.Fields{
		"path":    fs.config.InputPath,
		"sensors": len(req.Series),
		"points":  req.PointCount(),
	}).Debug("Loaded sensor series from file")

	return req, nil
}

// PersistResults writes the result to the output file.
func (fs *FileStorage) PersistResults(ctx context.Context, result *models.DetectionResult) error {
	if fs.config.OutputPath == "" {
		return errors.NewStorageError(errors.CodeInvalidConfig, "No output_path configured")
	}
	if result == nil {
		return errors.NewValidationError(errors.CodeInvalidInput, "Detection result cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fs.config.OutputPath), 0o755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to create output directory")
	}

	tmp := fs.config.OutputPath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("Failed to create file: %s", tmp))
	}

	switch fs.format(fs.config.OutputPath) {
	case constants.FormatCSV:
		err = WriteCSV(file, result)
	default:
		err = WriteJSON(file, result)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to write detection result")
	}

	if err := os.Rename(tmp, fs.config.OutputPath); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to move detection result into place")
	}

	fs.logger.WithFields(logrus.Fields{
		"path":     fs.config.OutputPath,
		"patterns": len(result.Patterns),
	}).Info("Wrote detection result")

	return nil
}

// Close is a no-op; files are opened per call.
func (fs *FileStorage) Close() error {
	return nil
}

// format picks the codec from the file extension, falling back to the
// configured format.
func (fs *FileStorage) format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return constants.FormatCSV
	case ".json":
		return constants.FormatJSON
	}
	if fs.config.Format != "" {
		return strings.ToLower(fs.config.Format)
	}
	return constants.FormatJSON
}

// readJSON accepts either a full detection request or a flat array of
// readings.
func readJSON(r io.Reader) (*models.DetectionRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to read JSON")
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var points []models.TimeSeriesPoint
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Failed to decode JSON readings")
		}
		return groupPoints(points), nil
	}

	var req models.DetectionRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Failed to decode detection request")
	}
	if req.Series == nil {
		req.Series = map[string][]models.TimeSeriesPoint{}
	}
	for id, series := range req.Series {
		for i := range series {
			if series[i].SensorID == "" {
				series[i].SensorID = id
			}
		}
	}
	return &req, nil
}

// readCSV expects a header with timestamp, sensor_id and value columns.
// equipment_type and floor_number are optional. Rows that cannot be parsed
// are skipped; a literal NaN value is kept so the detectors can count it.
func (fs *FileStorage) readCSV(r io.Reader) (*models.DetectionRequest, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to read CSV")
	}

	if len(records) < 2 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "CSV file must have at least header and one data row")
	}

	// Parse header
	timestampCol, sensorCol, valueCol, equipmentCol, floorCol := -1, -1, -1, -1, -1
	for i, col := range records[0] {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "timestamp", "time":
			timestampCol = i
		case "sensor_id", "sensor":
			sensorCol = i
		case "value":
			valueCol = i
		case "equipment_type", "equipment":
			equipmentCol = i
		case "floor_number", "floor":
			floorCol = i
		}
	}

	if timestampCol == -1 || sensorCol == -1 || valueCol == -1 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "CSV must have timestamp, sensor_id and value columns")
	}

	var points []models.TimeSeriesPoint
	floors := make(map[string]int)
	for i, record := range records[1:] {
		row := i + 2
		if len(record) <= timestampCol || len(record) <= sensorCol || len(record) <= valueCol {
			fs.logger.WithField("row", row).Warn("Skipping short CSV row")
			continue
		}

		timestamp, err := parseTimestamp(record[timestampCol])
		if err != nil {
			fs.logger.WithError(err).WithField("row", row).Warn("Failed to parse timestamp")
			continue
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[valueCol]), 64)
		if err != nil {
			fs.logger.WithError(err).WithField("row", row).Warn("Failed to parse value")
			continue
		}

		point := models.TimeSeriesPoint{
			Timestamp: timestamp,
			Value:     value,
			SensorID:  strings.TrimSpace(record[sensorCol]),
		}
		if equipmentCol != -1 && len(record) > equipmentCol {
			point.EquipmentType = strings.TrimSpace(record[equipmentCol])
		}
		if floorCol != -1 && len(record) > floorCol {
			if floor, err := strconv.Atoi(strings.TrimSpace(record[floorCol])); err == nil {
				floors[point.SensorID] = floor
			}
		}
		points = append(points, point)
	}

	req := groupPoints(points)
	for id, floor := range floors {
		info := req.Sensors[id]
		info.FloorNumber = lo.ToPtr(floor)
		req.Sensors[id] = info
	}
	return req, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse("2006-01-02 15:04:05", raw)
}

// groupPoints builds a request from flat readings, taking sensor metadata
// from the first reading that carries it.
func groupPoints(points []models.TimeSeriesPoint) *models.DetectionRequest {
	req := &models.DetectionRequest{
		Series:  lo.GroupBy(points, func(p models.TimeSeriesPoint) string { return p.SensorID }),
		Sensors: make(map[string]models.SensorInfo),
	}
	for _, p := range points {
		if p.EquipmentType == "" {
			continue
		}
		if _, ok := req.Sensors[p.SensorID]; !ok {
			req.Sensors[p.SensorID] = models.SensorInfo{EquipmentType: p.EquipmentType}
		}
	}
	return req
}

func filterSensors(req *models.DetectionRequest, sensorIDs []string) *models.DetectionRequest {
	if len(sensorIDs) == 0 {
		return req
	}
	req.Series = lo.PickByKeys(req.Series, sensorIDs)
	req.Sensors = lo.PickByKeys(req.Sensors, sensorIDs)
	return req
}

// spanOf returns the window covering every valid timestamp.
func spanOf(series map[string][]models.TimeSeriesPoint) models.AnalysisWindow {
	var window models.AnalysisWindow
	for _, points := range series {
		for _, p := range points {
			if !p.HasValidTimestamp() {
				continue
			}
			if window.Start.IsZero() || p.Timestamp.Before(window.Start) {
				window.Start = p.Timestamp
			}
			if window.End.IsZero() || p.Timestamp.After(window.End) {
				window.End = p.Timestamp
			}
		}
	}
	return window
}

// WriteJSON encodes result as indented JSON.
func WriteJSON(w io.Writer, result *models.DetectionResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

var csvHeader = []string{
	"pattern_id", "sensor_id", "equipment_type", "timestamp", "pattern_type", "severity",
	"confidence_score", "classified_type", "risk_score", "urgency_level", "failure_probability",
}

// WriteCSV writes one row per detected pattern joined with its
// classification.
func WriteCSV(w io.Writer, result *models.DetectionResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	classified := lo.KeyBy(result.Classifications, func(c models.ClassificationResult) string { return c.PatternID })
	patterns := append([]models.DetectedPattern(nil), result.Patterns...)
	sort.SliceStable(patterns, func(i, j int) bool { return patterns[i].SensorID < patterns[j].SensorID })

	for _, p := range patterns {
		c := classified[p.ID]
		record := []string{
			p.ID,
			p.SensorID,
			p.EquipmentType,
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			string(p.PatternType),
			string(p.Severity),
			strconv.FormatFloat(p.ConfidenceScore, 'f', 2, 64),
			string(c.ClassifiedType),
			strconv.FormatFloat(c.RiskScore, 'f', 2, 64),
			string(c.UrgencyLevel),
			strconv.FormatFloat(c.FailureProbability, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
