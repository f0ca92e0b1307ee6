package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/coursehub/progress-service/internal/models"
	"go.uber.org/zap"
)

type BaseHandler struct {
	logger *zap.Logger
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// respondJSON sends a JSON response
func (h *BaseHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error JSON response
func (h *BaseHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps a service error to its status and reason code
func (h *BaseHandler) respondServiceError(w http.ResponseWriter, err error) {
	reason := models.ReasonCode(err)
	status := statusForReason(reason)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("reason", reason), zap.Error(err))
		message = http.StatusText(status)
	}
	h.respondJSON(w, status, errorResponse{Error: message, Reason: reason})
}

func statusForReason(reason string) int {
	switch reason {
	case models.ReasonNotFound:
		return http.StatusNotFound
	case models.ReasonUnauthorized:
		return http.StatusForbidden
	case models.ReasonConcurrencyConflict, models.ReasonAlreadyExists:
		return http.StatusConflict
	case models.ReasonStorageFailure:
		return http.StatusServiceUnavailable
	case models.ReasonInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// pathID parses a positive integer path parameter
func pathID(value string) (int, bool) {
	id, err := strconv.Atoi(value)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
