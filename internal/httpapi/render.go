package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/orchestrator"
)

type ErrorCode string

const (
	ErrorCodeInvalidJSON      ErrorCode = "invalid_json"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeConflict         ErrorCode = "merge_conflict"
	ErrorCodeDirtyWorktree    ErrorCode = "dirty_worktree"
	ErrorCodeConfig           ErrorCode = "config"
	ErrorCodeProcess          ErrorCode = "process"
	ErrorCodeUnavailable      ErrorCode = "unavailable"
	ErrorCodeInternal         ErrorCode = "internal"
)

type ErrorResponse struct {
	Status  string              `json:"status"`
	Code    ErrorCode           `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func errorResponse(code ErrorCode, message string, errs map[string][]string) *ErrorResponse {
	return &ErrorResponse{Status: "failed", Code: code, Message: message, Errors: errs}
}

type renderOption = func(w http.ResponseWriter)

func status(code int) renderOption {
	return func(w http.ResponseWriter) { w.WriteHeader(code) }
}

func renderJSON(w http.ResponseWriter, payload any, opts ...renderOption) {
	w.Header().Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(w)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// renderError maps coordinator errors to HTTP statuses.
func renderError(w http.ResponseWriter, err error) {
	code, httpStatus := ErrorCodeInternal, http.StatusInternalServerError
	var errs map[string][]string

	switch {
	case errors.Is(err, orchestrator.ErrStopped):
		code, httpStatus = ErrorCodeUnavailable, http.StatusServiceUnavailable
	case apperr.IsValidation(err):
		code, httpStatus = ErrorCodeValidationFailed, http.StatusBadRequest
	case apperr.IsConfig(err):
		code, httpStatus = ErrorCodeConfig, http.StatusUnprocessableEntity
	case apperr.IsGitKind(err, apperr.GitConflict):
		code, httpStatus = ErrorCodeConflict, http.StatusConflict
		errs = map[string][]string{"files": apperr.ConflictFiles(err)}
	case apperr.IsGitKind(err, apperr.GitDirtyWorktree):
		code, httpStatus = ErrorCodeDirtyWorktree, http.StatusConflict
	case apperr.IsGitKind(err, apperr.GitNotFound):
		code, httpStatus = ErrorCodeNotFound, http.StatusNotFound
	case apperr.IsProcess(err):
		code, httpStatus = ErrorCodeProcess, http.StatusBadGateway
	}
	renderJSON(w, errorResponse(code, err.Error(), errs), status(httpStatus))
}

func renderNotFound(w http.ResponseWriter, what, id string) {
	renderJSON(w, errorResponse(ErrorCodeNotFound, what+" "+id+" not found", nil), status(http.StatusNotFound))
}
