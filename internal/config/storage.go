package config

import (
	"time"

	"github.com/inferloop/patternscope/pkg/constants"
)

// StorageConfig configures the persistence adapters.
type StorageConfig struct {
	File        FileConfig        `json:"file" yaml:"file" mapstructure:"file"`
	InfluxDB    InfluxDBConfig    `json:"influxdb" yaml:"influxdb" mapstructure:"influxdb"`
	TimescaleDB TimescaleDBConfig `json:"timescaledb" yaml:"timescaledb" mapstructure:"timescaledb"`
	S3          S3Config          `json:"s3" yaml:"s3" mapstructure:"s3"`
}

// FileConfig configures the local file source and sink.
type FileConfig struct {
	InputPath  string `json:"input_path" yaml:"input_path" mapstructure:"input_path"`
	OutputPath string `json:"output_path" yaml:"output_path" mapstructure:"output_path"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"` // json or csv; used when the extension is neither
}

// InfluxDBConfig configures the InfluxDB 2.x data source.
type InfluxDBConfig struct {
	URL          string        `json:"url" yaml:"url" mapstructure:"url"`
	Token        string        `json:"-" yaml:"token" mapstructure:"token"`
	Organization string        `json:"organization" yaml:"organization" mapstructure:"organization"`
	Bucket       string        `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	Measurement  string        `json:"measurement" yaml:"measurement" mapstructure:"measurement"`
	Field        string        `json:"field" yaml:"field" mapstructure:"field"`
	SensorTag    string        `json:"sensor_tag" yaml:"sensor_tag" mapstructure:"sensor_tag"`
	EquipmentTag string        `json:"equipment_tag" yaml:"equipment_tag" mapstructure:"equipment_tag"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	UseGZip      bool          `json:"use_gzip" yaml:"use_gzip" mapstructure:"use_gzip"`
}

// TimescaleDBConfig configures the PostgreSQL/TimescaleDB result sink.
type TimescaleDBConfig struct {
	Host            string        `json:"host" yaml:"host" mapstructure:"host"`
	Port            int           `json:"port" yaml:"port" mapstructure:"port"`
	Database        string        `json:"database" yaml:"database" mapstructure:"database"`
	Username        string        `json:"username" yaml:"username" mapstructure:"username"`
	Password        string        `json:"-" yaml:"password" mapstructure:"password"`
	SSLMode         string        `json:"ssl_mode" yaml:"ssl_mode" mapstructure:"ssl_mode"`
	ConnectTimeout  time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `json:"query_timeout" yaml:"query_timeout" mapstructure:"query_timeout"`
	MaxConnections  int           `json:"max_connections" yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	UseHypertables  bool          `json:"use_hypertables" yaml:"use_hypertables" mapstructure:"use_hypertables"`
}

// S3Config configures the S3 result archive.
type S3Config struct {
	Region          string        `json:"region" yaml:"region" mapstructure:"region"`
	Bucket          string        `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string        `json:"-" yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `json:"-" yaml:"secret_access_key" mapstructure:"secret_access_key"`
	Endpoint        string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	ForcePathStyle  bool          `json:"force_path_style" yaml:"force_path_style" mapstructure:"force_path_style"`
	Prefix          string        `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	UseCompression  bool          `json:"use_compression" yaml:"use_compression" mapstructure:"use_compression"`
}

// DefaultStorageConfig returns adapter defaults. Credentials are never defaulted.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		File: FileConfig{
			Format: constants.FormatJSON,
		},
		InfluxDB: InfluxDBConfig{
			URL:          "http://localhost:8086",
			Bucket:       "sensors",
			Measurement:  "sensor_reading",
			Field:        "value",
			SensorTag:    "sensor_id",
			EquipmentTag: "equipment_type",
			Timeout:      30 * time.Second,
			UseGZip:      true,
		},
		TimescaleDB: TimescaleDBConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "patternscope",
			SSLMode:         "disable",
			ConnectTimeout:  10 * time.Second,
			QueryTimeout:    30 * time.Second,
			MaxConnections:  10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Prefix:         "detections",
			Timeout:        30 * time.Second,
			UseCompression: true,
		},
	}
}
