package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"vego/backend/services/stations-service/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "sign in to check in")
	case errors.Is(err, service.ErrTooFar):
		writeError(w, http.StatusForbidden, "too far from the station to check in")
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "unknown status value")
	case errors.Is(err, service.ErrInvalidConnectorSelection):
		writeError(w, http.StatusUnprocessableEntity, "invalid connector selection")
	case errors.Is(err, service.ErrConnectorNotFound):
		writeError(w, http.StatusNotFound, "connector not found")
	case errors.Is(err, service.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "station store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
