package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/config"
)

func TestNewAppliesLevelAndFormat(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "debug", Format: "json"})

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNewFallsBackToInfoText(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "loud"})

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patternscope.log")
	cfg := config.Default().Logging
	cfg.File = path
	cfg.Format = "json"

	logger := New(cfg)
	logger.WithField("sensor_id", "ahu-1").Info("Detection run finished")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sensor_id":"ahu-1"`)
}

func TestRotator(t *testing.T) {
	cfg := config.LoggingConfig{File: "/var/log/patternscope.log", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 7, Compress: true}
	r := Rotator(cfg)

	assert.Equal(t, "/var/log/patternscope.log", r.Filename)
	assert.Equal(t, 50, r.MaxSize)
	assert.Equal(t, 3, r.MaxBackups)
	assert.Equal(t, 7, r.MaxAge)
	assert.True(t, r.Compress)
}
