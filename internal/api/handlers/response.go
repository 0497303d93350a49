package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps err to its HTTP status. Errors that are not AppErrors are
// reported as internal.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		appErr = errors.NewInternalError("Internal server error")
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:    appErr.Code,
		Message: appErr.Message,
		Context: appErr.Context,
	}})
}
