package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tOgg1/leasedesk/internal/models"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	RequestID string      `json:"request_id"`
	Error     errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, errorBody{
		RequestID: requestIDFrom(r.Context()),
		Error:     errorDetail{Code: code, Message: message, Details: details},
	})
}

// writeDomainError maps the workflow error taxonomy onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *models.ValidationErrors
	switch {
	case errors.As(err, &validation):
		writeError(w, r, http.StatusBadRequest, "VALIDATION", err.Error(), validation.Errors)
	case errors.Is(err, models.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, models.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, models.ErrConflict):
		writeError(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, models.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		logger := s.log(r)
		logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
