package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quarrybi/semantic-engine/pkg/apperrors"
	"github.com/quarrybi/semantic-engine/pkg/services"
	"github.com/quarrybi/semantic-engine/pkg/sqlguard"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteServiceError maps service-layer failures to HTTP responses, keeping
// typed planner and guard codes intact for the caller.
func WriteServiceError(w http.ResponseWriter, err error) {
	var planErr *services.PlanError
	if errors.As(err, &planErr) {
		status := http.StatusBadRequest
		if planErr.Code == services.CodeQueryExecutionFailed {
			status = http.StatusBadGateway
		}
		_ = ErrorResponse(w, status, planErr.Code, planErr.Message)
		return
	}

	var guardErr *sqlguard.GuardError
	if errors.As(err, &guardErr) {
		_ = ErrorResponse(w, http.StatusForbidden, guardErr.Code, guardErr.Error())
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrModelNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		_ = ErrorResponse(w, http.StatusConflict, "conflict", err.Error())
	default:
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
