package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Validation errors
	ErrInvalidInputData     = errors.New("invalid input data")
	ErrInvalidTimeRange     = errors.New("invalid time range: start time must be before end time")
	ErrInvalidThreshold     = errors.New("invalid threshold: must be positive")
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Storage errors
	ErrStorageConnectionFailed = errors.New("storage connection failed")
	ErrStorageTimeout          = errors.New("storage operation timeout")
	ErrDataNotFound            = errors.New("data not found")

	// Network errors
	ErrConnectionFailed = errors.New("connection failed")
	ErrNetworkTimeout   = errors.New("network timeout")

	// Internal errors
	ErrInternal    = errors.New("internal error")
	ErrUnavailable = errors.New("service unavailable")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeData           ErrorType = "data"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeClassification ErrorType = "classification"
	ErrorTypeStorage        ErrorType = "storage"
	ErrorTypeCache          ErrorType = "cache"
	ErrorTypePerformance    ErrorType = "performance"
	ErrorTypeConfiguration  ErrorType = "configuration"
	ErrorTypeInternal       ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Retryable  bool                   `json:"retryable"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Retryable:  false,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		Retryable:  isRetryable(err),
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConfiguration,
		Code:       code,
		Message:    message,
		Cause:      ErrInvalidConfiguration,
		HTTPStatus: getDefaultHTTPStatus(ErrorTypeConfiguration),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternalError,
		Message:    message,
		Retryable:  false,
		HTTPStatus: 500,
	}
}

// UserMessage returns the caller-facing message of err. For an AppError this
// is the message without the code prefix.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return appErr.Message + " - " + appErr.Details
		}
		return appErr.Message
	}
	return err.Error()
}

// As is a convenience wrapper so callers do not need to import both packages.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a convenience wrapper around the standard errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation, ErrorTypeClassification:
		return 400
	case ErrorTypeData:
		return 422
	case ErrorTypeStorage:
		return 502
	case ErrorTypeCache, ErrorTypeConfiguration:
		return 503
	case ErrorTypeInternal, ErrorTypePerformance:
		return 500
	default:
		return 500
	}
}

// isRetryable determines if an error is retryable
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrNetworkTimeout):
		return true
	case errors.Is(err, ErrConnectionFailed):
		return true
	case errors.Is(err, ErrStorageTimeout):
		return true
	case errors.Is(err, ErrUnavailable):
		return true
	default:
		return false
	}
}

// ErrorResponse represents an error response for APIs
type ErrorResponse struct {
	Error     *AppError `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// Error codes for different error scenarios
const (
	// Data quality error codes
	CodeEmptyData        = "EMPTY_DATA"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeNoValidData      = "NO_VALID_DATA"

	// Validation error codes
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidTimeRange = "INVALID_TIME_RANGE"
	CodeInvalidPattern   = "INVALID_PATTERN"
	CodeInvalidConfig    = "INVALID_CONFIG"

	// Storage error codes
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeReadFailed       = "READ_FAILED"
	CodeNotConnected     = "NOT_CONNECTED"

	// Cache and performance codes
	CodeCacheUnavailable = "CACHE_UNAVAILABLE"
	CodeSLABreach        = "SLA_BREACH"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
