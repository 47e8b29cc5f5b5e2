package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"vego/backend/services/stations-service/internal/feed"
	"vego/backend/services/stations-service/internal/geo"
	"vego/backend/services/stations-service/internal/models"
)

// NewStationsListHandler returns GET /api/stations. Optional query params:
// status filters stations with at least one connector in that status, q does
// a name/address substring match.
func NewStationsListHandler(stationFeed *feed.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stations := stationFeed.Snapshot()

		if status := models.Status(r.URL.Query().Get("status")); status != "" {
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "unknown status value")
				return
			}
			stations = filterByStatus(stations, status)
		}
		if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
			stations = filterByQuery(stations, q)
		}
		if stations == nil {
			stations = []models.Station{}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stations": stations,
		})
	}
}

// NewNearestStationHandler returns GET /api/stations/nearest: the available
// station closest to the given coordinates.
func NewNearestStationHandler(stationFeed *feed.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, lng, ok := parseCoordinates(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "lat and lng query params required")
			return
		}

		var (
			nearest *models.Station
			minDist float64
		)
		for _, station := range stationFeed.Snapshot() {
			if station.Status != models.StatusAvailable {
				continue
			}
			dist := geo.Distance(lat, lng, station.Latitude, station.Longitude)
			if nearest == nil || dist < minDist {
				s := station
				nearest = &s
				minDist = dist
			}
		}
		if nearest == nil {
			writeError(w, http.StatusNotFound, "no available stations")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"station":    nearest,
			"distanceKm": minDist,
		})
	}
}

func filterByStatus(stations []models.Station, status models.Status) []models.Station {
	var out []models.Station
	for _, s := range stations {
		if len(s.Connectors) > 0 {
			for _, c := range s.Connectors {
				if c.Status == status {
					out = append(out, s)
					break
				}
			}
			continue
		}
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

func filterByQuery(stations []models.Station, q string) []models.Station {
	q = strings.ToLower(q)
	var out []models.Station
	for _, s := range stations {
		if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Address), q) {
			out = append(out, s)
		}
	}
	return out
}

func parseCoordinates(r *http.Request) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}
