package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/middleware"
	"github.com/atinyakov/commlog/internal/models"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// dataResponse wraps successful log responses.
type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataResponse{Success: true, Data: data})
}

// writeError maps err onto the error taxonomy. Anything unrecognised is
// logged and reported as an internal error without its text.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation failed",
			Code:   "VALIDATION_ERROR",
			Errors: ve.Fields,
		})
	case errors.Is(err, models.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required", Code: "UNAUTHENTICATED"})
	case errors.Is(err, models.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: models.ErrInvalidCredentials.Error(), Code: "INVALID_CREDENTIALS"})
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "access denied", Code: "FORBIDDEN"})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Code: "NOT_FOUND"})
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: models.ErrConflict.Error(), Code: "CONFLICT"})
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"})
	}
}

// decodeJSON reads a single JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewValidationError("body", "request body is required")
		}
		var tsErr *json.UnmarshalTypeError
		if errors.As(err, &tsErr) && tsErr.Field != "" {
			return models.NewValidationError(tsErr.Field, "has the wrong type")
		}
		return models.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// actor returns the identity placed in the context by middleware.BearerAuth.
func actor(r *http.Request) (models.Identity, error) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return models.Identity{}, models.ErrUnauthenticated
	}
	return id, nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Code: "NOT_FOUND"})
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests", Code: "RATE_LIMITED"})
}
