package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/observability/health"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

type stubDetector struct {
	result          *models.DetectionResult
	classifications []models.ClassificationResult
	err             error
	lastRequest     models.DetectionRequest
}

func (s *stubDetector) DetectPatterns(_ context.Context, req models.DetectionRequest) *models.DetectionResult {
	s.lastRequest = req
	return s.result
}

func (s *stubDetector) ClassifyPatterns([]models.DetectedPattern) ([]models.ClassificationResult, error) {
	return s.classifications, s.err
}

func newHandler(d Detector) *PatternsHandler {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewPatternsHandler(d, logger)
}

func TestDetectSuccess(t *testing.T) {
	stub := &stubDetector{result: &models.DetectionResult{
		Success:  true,
		Patterns: []models.DetectedPattern{{ID: "p-1", SensorID: "ahu-1"}},
	}}
	body := `{"series":{"ahu-1":[{"timestamp":"2024-01-15T10:00:00Z","value":21.5,"sensor_id":"ahu-1"}]}}`

	rec := httptest.NewRecorder()
	newHandler(stub).Detect(rec, httptest.NewRequest(http.MethodPost, "/api/v1/patterns/detect", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, stub.lastRequest.Series["ahu-1"], 1)
	assert.Equal(t, 21.5, stub.lastRequest.Series["ahu-1"][0].Value)

	var result models.DetectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Len(t, result.Patterns, 1)
}

func TestDetectKeepsSensorsWhenOneReadingIsUnparsable(t *testing.T) {
	stub := &stubDetector{result: &models.DetectionResult{Success: true}}
	body := `{"series":{
		"ahu-1":[{"timestamp":"2024-01-15T10:00:00Z","value":21.5},{"timestamp":"not-a-time","value":22.0}],
		"chw-1":[{"timestamp":"2024-01-15T10:00:00Z","value":7.1}]
	}}`

	rec := httptest.NewRecorder()
	newHandler(stub).Detect(rec, httptest.NewRequest(http.MethodPost, "/api/v1/patterns/detect", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.lastRequest.Series["ahu-1"], 2)
	assert.True(t, stub.lastRequest.Series["ahu-1"][0].HasValidTimestamp())
	assert.False(t, stub.lastRequest.Series["ahu-1"][1].HasValidTimestamp())
	require.Len(t, stub.lastRequest.Series["chw-1"], 1)
	assert.Equal(t, 7.1, stub.lastRequest.Series["chw-1"][0].Value)
}

func TestDetectDataFailureReturnsStructuredResult(t *testing.T) {
	stub := &stubDetector{result: &models.DetectionResult{Success: false, Error: "No data points provided"}}

	rec := httptest.NewRecorder()
	newHandler(stub).Detect(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"series":{}}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "No data points provided")
}

func TestDetectRejectsMalformedJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(&stubDetector{}).Detect(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"series":`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeInvalidInput, body.Error.Code)
}

func TestDetectRejectsOversizedBody(t *testing.T) {
	h := newHandler(&stubDetector{})
	h.maxBody = 16

	rec := httptest.NewRecorder()
	h.Detect(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"series":{"ahu-1":[]}, "window":{}}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassify(t *testing.T) {
	stub := &stubDetector{classifications: []models.ClassificationResult{
		{PatternID: "p-1", ClassifiedType: models.ClassifiedSuddenSpike, UrgencyLevel: models.UrgencyImmediate},
	}}

	rec := httptest.NewRecorder()
	newHandler(stub).Classify(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patterns":[{"id":"p-1"}]}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Classifications, 1)
	assert.Equal(t, models.ClassifiedSuddenSpike, resp.Classifications[0].ClassifiedType)
}

func TestClassifyEmptyReturnsEmptyArray(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(&stubDetector{}).Classify(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patterns":[]}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"classifications":[]}`, rec.Body.String())
}

func TestClassifyInvalidPattern(t *testing.T) {
	stub := &stubDetector{err: errors.NewInvalidPatternError("p-9", "pattern has no data points").WithContext("index", 0)}

	rec := httptest.NewRecorder()
	newHandler(stub).Classify(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patterns":[{"id":"p-9"}]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeInvalidPattern, body.Error.Code)
	assert.Contains(t, body.Error.Message, "p-9")
	assert.EqualValues(t, 0, body.Error.Context["index"])
}

func TestHealthAndVersion(t *testing.T) {
	h := NewHealthHandler("1.2.3")

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var health HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)

	rec = httptest.NewRecorder()
	h.GetVersion(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var version VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
	assert.Equal(t, "patternscope", version.Name)
	assert.Equal(t, "1.2.3", version.Version)
	assert.Equal(t, "v1", version.APIVersion)
}

type stubReadiness struct {
	report health.Report
}

func (s stubReadiness) Run(context.Context) health.Report { return s.report }

func TestReadiness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler("1.2.3").GetReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	degraded := NewHealthHandler("1.2.3").WithReadiness(stubReadiness{health.Report{Status: health.StatusDegraded}})
	rec = httptest.NewRecorder()
	degraded.GetReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewHealthHandler("1.2.3").WithReadiness(stubReadiness{health.Report{Status: health.StatusUnhealthy}})
	rec = httptest.NewRecorder()
	down.GetReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
