package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// Detector is the part of the analytics engine the HTTP API exposes.
type Detector interface {
	DetectPatterns(ctx context.Context, req models.DetectionRequest) *models.DetectionResult
	ClassifyPatterns(patterns []models.DetectedPattern) ([]models.ClassificationResult, error)
}

// ClassifyRequest is the body of POST /patterns/classify.
type ClassifyRequest struct {
	Patterns []models.DetectedPattern `json:"patterns"`
}

// ClassifyResponse is the reply of POST /patterns/classify.
type ClassifyResponse struct {
	Classifications []models.ClassificationResult `json:"classifications"`
}

// PatternsHandler serves detection and classification.
type PatternsHandler struct {
	detector Detector
	logger   *logrus.Logger
	maxBody  int64
}

func NewPatternsHandler(detector Detector, logger *logrus.Logger) *PatternsHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &PatternsHandler{
		detector: detector,
		logger:   logger,
		maxBody:  constants.MaxUploadSize,
	}
}

// Detect runs pattern detection over the posted series. A run that fails on
// its data still returns the structured result, with 422.
func (h *PatternsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req models.DetectionRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result := h.detector.DetectPatterns(r.Context(), req)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}

	h.logger.WithFields(logrus.Fields{
		"sensors":  len(req.Series),
		"points":   req.PointCount(),
		"patterns": len(result.Patterns),
		"success":  result.Success,
	}).Debug("Detection request served")

	writeJSON(w, status, result)
}

// Classify classifies already detected patterns.
func (h *PatternsHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	classifications, err := h.detector.ClassifyPatterns(req.Patterns)
	if err != nil {
		writeError(w, err)
		return
	}

	if classifications == nil {
		classifications = []models.ClassificationResult{}
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{Classifications: classifications})
}

func (h *PatternsHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Request body is not valid JSON")
	}
	return nil
}
