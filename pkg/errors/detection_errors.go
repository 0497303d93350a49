package errors

import (
	"fmt"
	"time"
)

// MessageNoDataPoints is the caller-facing message for empty input.
const MessageNoDataPoints = "No data points provided"

// Sentinel values usable with errors.Is; only Type and Code are compared.
var (
	ErrEmptyData        = &AppError{Type: ErrorTypeData, Code: CodeEmptyData}
	ErrInsufficientData = &AppError{Type: ErrorTypeData, Code: CodeInsufficientData}
	ErrNoValidData      = &AppError{Type: ErrorTypeData, Code: CodeNoValidData}
	ErrInvalidPattern   = &AppError{Type: ErrorTypeClassification, Code: CodeInvalidPattern}
	ErrCacheUnavailable = &AppError{Type: ErrorTypeCache, Code: CodeCacheUnavailable}
	ErrSLABreach        = &AppError{Type: ErrorTypePerformance, Code: CodeSLABreach}
)

// NewEmptyDataError reports input with zero data points.
func NewEmptyDataError() *AppError {
	return NewAppError(ErrorTypeData, CodeEmptyData, MessageNoDataPoints)
}

// NewInsufficientDataError reports a sample below the configured minimum.
func NewInsufficientDataError(got, need int) *AppError {
	return NewAppError(ErrorTypeData, CodeInsufficientData,
		fmt.Sprintf("Insufficient data points: got %d, need at least %d", got, need)).
		WithContext("got", got).
		WithContext("need", need)
}

// NewNoValidDataError reports that every value was NaN or infinite.
func NewNoValidDataError(invalid int) *AppError {
	return NewAppError(ErrorTypeData, CodeNoValidData,
		fmt.Sprintf("No valid data points: all %d values are NaN or infinite", invalid)).
		WithContext("invalid_count", invalid)
}

// NewRejectedDataError reports invalid values under a reject policy.
func NewRejectedDataError(invalid, total int) *AppError {
	return NewAppError(ErrorTypeData, CodeNoValidData,
		fmt.Sprintf("Invalid data points rejected: %d of %d values are NaN, infinite or untimed", invalid, total)).
		WithContext("invalid_count", invalid)
}

// NewInvalidPatternError reports a malformed pattern handed to the classifier.
func NewInvalidPatternError(patternID, reason string) *AppError {
	return NewAppError(ErrorTypeClassification, CodeInvalidPattern,
		fmt.Sprintf("Invalid pattern %q: %s", patternID, reason))
}

// NewCacheUnavailableError wraps a cache backend failure.
func NewCacheUnavailableError(err error, operation string) *AppError {
	appErr := WrapError(err, ErrorTypeCache, CodeCacheUnavailable, "Cache backend unavailable")
	appErr.Retryable = true
	return appErr.WithDetails(operation)
}

// NewSlaBreachWarning records a processing time above budget. It is an
// observability event and never fails a run.
func NewSlaBreachWarning(elapsed, budget time.Duration, sensors int) *AppError {
	overage := 0.0
	if budget > 0 {
		overage = float64(elapsed-budget) / float64(budget) * 100
	}
	return NewAppError(ErrorTypePerformance, CodeSLABreach,
		fmt.Sprintf("SLA breach: processed %d sensors in %dms, budget %dms (%.1f%% over)",
			sensors, elapsed.Milliseconds(), budget.Milliseconds(), overage)).
		WithContext("processing_time_ms", elapsed.Milliseconds()).
		WithContext("budget_ms", budget.Milliseconds()).
		WithContext("overage_pct", overage)
}

// IsDataQuality reports whether err is one of the data-quality errors that
// are returned as structured results instead of failing a batch.
func IsDataQuality(err error) bool {
	return Is(err, ErrEmptyData) || Is(err, ErrInsufficientData) || Is(err, ErrNoValidData)
}

// IsInvalidPattern reports whether err is an InvalidPatternError.
func IsInvalidPattern(err error) bool {
	return Is(err, ErrInvalidPattern)
}

// IsEmptyData reports whether err is an EmptyDataError.
func IsEmptyData(err error) bool {
	return Is(err, ErrEmptyData)
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	return Is(err, ErrInsufficientData)
}

// IsNoValidData reports whether err is a NoValidDataError.
func IsNoValidData(err error) bool {
	return Is(err, ErrNoValidData)
}

// IsSLABreach reports whether err is an SlaBreachWarning.
func IsSLABreach(err error) bool {
	return Is(err, ErrSLABreach)
}
