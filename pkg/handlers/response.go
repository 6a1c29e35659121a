package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
)

// ApiResponse is the envelope for successful JSON responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// ErrorResponseWithDetails is ErrorResponse plus structured details.
func ErrorResponseWithDetails(w http.ResponseWriter, statusCode int, errorCode, message string, details any) error {
	if details == nil {
		return ErrorResponse(w, statusCode, errorCode, message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]any{
		"error":   errorCode,
		"message": message,
		"details": details,
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

var statusByCode = map[string]int{
	apperrors.CodeNotFound:            http.StatusNotFound,
	apperrors.CodeValidation:          http.StatusBadRequest,
	apperrors.CodeInvalidField:        http.StatusBadRequest,
	apperrors.CodeUnsupportedDocument: http.StatusBadRequest,
	apperrors.CodeDocumentTooLarge:    http.StatusRequestEntityTooLarge,
	apperrors.CodeNotReady:            http.StatusUnprocessableEntity,
	apperrors.CodeConflict:            http.StatusConflict,
	apperrors.CodeExtractionFailed:    http.StatusBadGateway,
	apperrors.CodeDraftingFailed:      http.StatusBadGateway,
	apperrors.CodeRenderFailed:        http.StatusInternalServerError,
}

// writeServiceError maps a service error to its HTTP response. Domain errors
// keep their message and details; anything else becomes an opaque 500.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger, logMsg string, fields ...zap.Field) {
	code, details, ok := apperrors.Classify(err)
	if !ok {
		logger.Error(logMsg, append(fields, zap.Error(err))...)
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	status := statusByCode[code]
	if status >= http.StatusInternalServerError {
		logger.Error(logMsg, append(fields, zap.Error(err))...)
	} else {
		logger.Debug(logMsg, append(fields, zap.Error(err))...)
	}

	message := err.Error()
	var notReady *apperrors.NotReadyError
	if errors.As(err, &notReady) {
		message = "Drafting preconditions are not met"
	}
	if err := ErrorResponseWithDetails(w, status, code, message, details); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
