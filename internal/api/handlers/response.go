package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/factorlab/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusOf maps pipeline errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, contracts.ErrMissingData):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrTimingViolation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
