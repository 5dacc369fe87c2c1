package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	middleware "github.com/markdave123-py/chatspace/internal/api/middlewares"
	"github.com/markdave123-py/chatspace/internal/apperrors"
)

// ErrorResponse defines the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// respondWithError maps service errors to status codes. Messages written by
// the services for client mistakes are passed through; everything else gets
// a fixed text so internals never leak.
func respondWithError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, apperrors.ErrValidation):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		message = "Invalid credentials."
	case errors.Is(err, apperrors.ErrForbidden):
		statusCode = http.StatusForbidden
		message = "Domain not authorized."
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		statusCode = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, apperrors.ErrConflict):
		statusCode = http.StatusConflict
		message = err.Error()
	case errors.Is(err, apperrors.ErrServiceUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, apperrors.ErrCompletion):
		statusCode = http.StatusBadGateway
		message = "The assistant could not answer right now. Please try again."
	default:
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status_code", statusCode), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status_code", statusCode), zap.String("client_message", message), zap.Error(err))
	}

	respondWithJSON(w, logger, statusCode, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, logger *zap.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("marshal JSON response failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		logger.Warn("write JSON response failed", zap.Error(err))
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", apperrors.ErrValidation)
	}
	return nil
}

func requireUser(r *http.Request) (string, error) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return "", apperrors.ErrUnauthorized
	}
	return id, nil
}
