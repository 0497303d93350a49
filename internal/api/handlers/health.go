package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/inferloop/patternscope/internal/observability/health"
	"github.com/inferloop/patternscope/pkg/constants"
)

// Readiness runs the dependency checks behind GET /ready.
type Readiness interface {
	Run(ctx context.Context) health.Report
}

type HealthHandler struct {
	startTime time.Time
	version   string
	readiness Readiness
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Uptime     string    `json:"uptime"`
	Goroutines int       `json:"goroutines"`
}

// VersionInfo is the body of GET /version.
type VersionInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	GoVersion  string `json:"go_version"`
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
	}
}

func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	})
}

// WithReadiness sets the checks run by GetReadiness.
func (h *HealthHandler) WithReadiness(r Readiness) *HealthHandler {
	h.readiness = r
	return h
}

// GetReadiness answers 503 when a critical dependency check fails.
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	report := health.Report{Status: health.StatusHealthy, Checks: []health.Result{}, Timestamp: time.Now().UTC()}
	if h.readiness != nil {
		report = h.readiness.Run(r.Context())
	}

	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (h *HealthHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionInfo{
		Name:       constants.AppName,
		Version:    h.version,
		APIVersion: constants.APIVersion,
		GoVersion:  runtime.Version(),
	})
}
