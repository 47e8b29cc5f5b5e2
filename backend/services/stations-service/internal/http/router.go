package httpserver

import (
	"net/http"

	"vego/backend/services/stations-service/internal/http/middleware"
)

// Routes groups handlers.
type Routes struct {
	StationsList   http.HandlerFunc
	NearestStation http.HandlerFunc
	CheckIn        http.HandlerFunc
	Release        http.HandlerFunc
	Feed           http.HandlerFunc
	Health         http.HandlerFunc
}

// NewRouter registers endpoints. Check-in and release require a verified
// identity; reads and the live feed are public.
func NewRouter(routes Routes, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	if routes.StationsList != nil {
		mux.Handle("/api/stations", method(http.MethodGet, routes.StationsList))
	}
	if routes.NearestStation != nil {
		mux.Handle("/api/stations/nearest", method(http.MethodGet, routes.NearestStation))
	}
	if routes.CheckIn != nil {
		mux.Handle("/api/stations/{id}/checkin", method(http.MethodPost, authenticated(routes.CheckIn)))
	}
	if routes.Release != nil {
		mux.Handle("/api/stations/{id}/release", method(http.MethodPost, authenticated(routes.Release)))
	}
	if routes.Feed != nil {
		mux.Handle("/api/stations/feed", method(http.MethodGet, routes.Feed))
	}

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
