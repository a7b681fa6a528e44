package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bus-tracker/internal/transit"
)

type nearbyStop struct {
	transit.CatalogStop
	DistanceKm float64 `json:"distanceKm"`
}

func (h *Handler) ListStops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stops.List())
}

func (h *Handler) GetStop(w http.ResponseWriter, r *http.Request) {
	s, err := h.stops.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) SearchStops(w http.ResponseWriter, r *http.Request) {
	out := h.stops.Search(chi.URLParam(r, "term"))
	if out == nil {
		out = []transit.CatalogStop{}
	}
	writeJSON(w, http.StatusOK, out)
}

// NearbyStops handles GET /stops/nearby?lat=&lng=&radius=
func (h *Handler) NearbyStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeError(w, fmt.Errorf("invalid lat %q: %w", q.Get("lat"), transit.ErrInvalidArgument))
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		writeError(w, fmt.Errorf("invalid lng %q: %w", q.Get("lng"), transit.ErrInvalidArgument))
		return
	}
	radius := 0.0
	if v := q.Get("radius"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius < 0 {
			writeError(w, fmt.Errorf("invalid radius %q: %w", v, transit.ErrInvalidArgument))
			return
		}
	}

	ranked := h.stops.Nearby(transit.Coordinate{Lat: lat, Lng: lng}, radius)
	out := make([]nearbyStop, 0, len(ranked))
	for _, rs := range ranked {
		out = append(out, nearbyStop{CatalogStop: rs.Stop, DistanceKm: rs.DistanceKm})
	}
	writeJSON(w, http.StatusOK, out)
}
