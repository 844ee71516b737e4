package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/chorely/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP statuses. Anything it does
// not recognize is logged and reported as a 500 with fallback as the message.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrNoAssignee):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInvariantViolation):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		logger.Error(fallback, "error", err)
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (*model.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func queryID(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
