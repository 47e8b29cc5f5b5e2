package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"vego/backend/services/stations-service/internal/geo"
	"vego/backend/services/stations-service/internal/http/middleware"
	"vego/backend/services/stations-service/internal/models"
	"vego/backend/services/stations-service/internal/repository"
	"vego/backend/services/stations-service/internal/service"
)

// CheckInHandlers exposes the check-in and release operations.
type CheckInHandlers struct {
	repo   *repository.StationRepository
	svc    *service.CheckInService
	logger *zap.Logger
}

// NewCheckInHandlers builds handlers.
func NewCheckInHandlers(repo *repository.StationRepository, svc *service.CheckInService, logger *zap.Logger) *CheckInHandlers {
	return &CheckInHandlers{repo: repo, svc: svc, logger: logger}
}

type checkInRequest struct {
	Status            string  `json:"status"`
	ConnectorID       string  `json:"connectorId"`
	EstimatedDuration int     `json:"estimatedDuration"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
}

type releaseRequest struct {
	ConnectorID string `json:"connectorId"`
}

// CheckIn handles POST /api/stations/{id}/checkin.
func (h *CheckInHandlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in to check in")
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	station, ok := h.fetchStation(w, r)
	if !ok {
		return
	}

	distance := geo.Distance(req.Latitude, req.Longitude, station.Latitude, station.Longitude)

	updated, err := h.svc.SubmitCheckIn(r.Context(), service.CheckInInput{
		Station:           *station,
		UserID:            identity.UserID,
		UserName:          identity.UserName,
		Status:            models.Status(req.Status),
		ConnectorID:       req.ConnectorID,
		EstimatedDuration: req.EstimatedDuration,
		DistanceKm:        distance,
	})
	if err != nil {
		h.logger.Info("check-in rejected",
			zap.String("station_id", station.ID),
			zap.String("user_id", identity.UserID),
			zap.Error(err),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"station": updated,
	})
}

// Release handles POST /api/stations/{id}/release.
func (h *CheckInHandlers) Release(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in to release")
		return
	}

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConnectorID == "" {
		writeError(w, http.StatusBadRequest, "connectorId required")
		return
	}

	station, ok := h.fetchStation(w, r)
	if !ok {
		return
	}

	updated, err := h.svc.Release(r.Context(), *station, req.ConnectorID)
	if err != nil {
		h.logger.Info("release rejected",
			zap.String("station_id", station.ID),
			zap.String("user_id", identity.UserID),
			zap.Error(err),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"station": updated,
	})
}

// fetchStation reads the authoritative document for the path id, writing the
// error response itself when the station cannot be loaded.
func (h *CheckInHandlers) fetchStation(w http.ResponseWriter, r *http.Request) (*models.Station, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "station id required")
		return nil, false
	}

	station, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "station not found")
			return nil, false
		}
		h.logger.Warn("failed to load station", zap.String("station_id", id), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "station store unavailable")
		return nil, false
	}
	return station, true
}
