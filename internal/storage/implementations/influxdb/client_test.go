package influxdb

import (
	"context"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/models"
)

func testWindow() models.AnalysisWindow {
	return models.AnalysisWindow{
		Start: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildFluxQuery(t *testing.T) {
	cfg := config.DefaultStorageConfig().InfluxDB

	flux := BuildFluxQuery(cfg, []string{"ahu-1", "chw-2"}, testWindow())

	expected := `from(bucket: "sensors")
  |> range(start: 2024-01-15T00:00:00Z, stop: 2024-01-16T00:00:00.000000001Z)
  |> filter(fn: (r) => r._measurement == "sensor_reading")
  |> filter(fn: (r) => r._field == "value")
  |> filter(fn: (r) => r.sensor_id == "ahu-1" or r.sensor_id == "chw-2")
  |> keep(columns: ["_time", "_value", "sensor_id", "equipment_type"])
  |> group(columns: ["sensor_id"])
  |> sort(columns: ["_time"])`
	assert.Equal(t, expected, flux)
}

func TestBuildFluxQueryAllSensorsEscapes(t *testing.T) {
	cfg := config.InfluxDBConfig{Bucket: `bms"prod`, SensorTag: "sensor_id"}

	flux := BuildFluxQuery(cfg, nil, testWindow())

	assert.Contains(t, flux, `from(bucket: "bms\"prod")`)
	assert.NotContains(t, flux, "r.sensor_id ==")
	assert.NotContains(t, flux, "_measurement")
	assert.Contains(t, flux, `keep(columns: ["_time", "_value", "sensor_id"])`)
}

func TestToPoint(t *testing.T) {
	cfg := config.DefaultStorageConfig().InfluxDB
	src, err := NewInfluxDBSource(&cfg, logrus.New())
	require.NoError(t, err)
	ts := time.Date(2024, 1, 15, 10, 45, 0, 0, time.UTC)

	point, ok := src.toPoint(query.NewFluxRecord(0, map[string]interface{}{
		"_time": ts, "_value": 28.4, "sensor_id": "ahu-1", "equipment_type": "HVAC",
	}))
	require.True(t, ok)
	assert.Equal(t, models.TimeSeriesPoint{Timestamp: ts, Value: 28.4, SensorID: "ahu-1", EquipmentType: "HVAC"}, point)

	point, ok = src.toPoint(query.NewFluxRecord(0, map[string]interface{}{
		"_time": ts, "_value": int64(7), "sensor_id": "pump-1",
	}))
	require.True(t, ok)
	assert.Equal(t, 7.0, point.Value)

	_, ok = src.toPoint(query.NewFluxRecord(0, map[string]interface{}{
		"_time": ts, "_value": "on", "sensor_id": "valve-1",
	}))
	assert.False(t, ok)

	_, ok = src.toPoint(query.NewFluxRecord(0, map[string]interface{}{
		"_time": ts, "_value": 1.0,
	}))
	assert.False(t, ok)
}

func TestNewInfluxDBSourceValidation(t *testing.T) {
	_, err := NewInfluxDBSource(nil, nil)
	assert.Error(t, err)

	_, err = NewInfluxDBSource(&config.InfluxDBConfig{URL: "http://localhost:8086"}, nil)
	assert.Error(t, err)
}

func TestLoadSeriesRequiresConnection(t *testing.T) {
	cfg := config.DefaultStorageConfig().InfluxDB
	src, err := NewInfluxDBSource(&cfg, nil)
	require.NoError(t, err)

	_, err = src.LoadSeries(context.Background(), nil, testWindow())
	assert.Error(t, err)
	assert.NoError(t, src.Close())
}
