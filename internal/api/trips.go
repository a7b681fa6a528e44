package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bus-tracker/internal/transit"
)

type createTripRequest struct {
	ID                  string         `json:"id"`
	BusID               string         `json:"busId"`
	RouteID             string         `json:"routeId"`
	StartTime           string         `json:"startTime"`
	Stops               []transit.Stop `json:"stops"`
	WheelchairAvailable *bool          `json:"wheelchairAvailable"`
}

type wheelchairRequest struct {
	Available *bool `json:"available"`
}

func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.trips.List())
}

func (h *Handler) ListRouteTrips(w http.ResponseWriter, r *http.Request) {
	out := h.trips.ListByRoute(chi.URLParam(r, "routeId"))
	if out == nil {
		out = []transit.Trip{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := h.trips.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CreateTrip handles POST /trips. New trips start at their first stop with the
// wheelchair slot free unless the request says otherwise.
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t := transit.Trip{
		ID:                  req.ID,
		BusID:               req.BusID,
		RouteID:             req.RouteID,
		StartTime:           req.StartTime,
		Stops:               req.Stops,
		WheelchairAvailable: true,
	}
	if t.StartTime == "" {
		t.StartTime = "08:00"
	}
	if req.WheelchairAvailable != nil {
		t.WheelchairAvailable = *req.WheelchairAvailable
	}
	created, err := h.trips.Create(t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetTripStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.trips.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) AdvanceProgress(w http.ResponseWriter, r *http.Request) {
	st, err := h.trips.AdvanceProgress(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) SetWheelchair(w http.ResponseWriter, r *http.Request) {
	var req wheelchairRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Available == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "available is required", Status: http.StatusBadRequest})
		return
	}
	st, err := h.trips.SetWheelchairAvailability(chi.URLParam(r, "id"), *req.Available)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	out := h.trips.ListUpcoming(chi.URLParam(r, "routeId"), h.now().In(h.tz))
	writeJSON(w, http.StatusOK, out)
}
