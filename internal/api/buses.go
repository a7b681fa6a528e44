package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bus-tracker/internal/registry"
	"bus-tracker/internal/transit"
)

type createBusRequest struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Capacity        int     `json:"capacity"`
	WheelchairSlots int     `json:"wheelchairSlots"`
	Speed           float64 `json:"speed"`
}

type slotAdjustment struct {
	Delta int `json:"delta"`
}

type slotAdjustmentResponse struct {
	BusID          string `json:"busId"`
	RemainingSlots int    `json:"remainingSlots"`
	TotalSlots     int    `json:"totalSlots"`
}

func (h *Handler) ListBuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.buses.List())
}

func (h *Handler) GetBus(w http.ResponseWriter, r *http.Request) {
	b, err := h.buses.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// CreateBus handles POST /buses. A new bus has no trips holding slots, so all
// wheelchair slots start free.
func (h *Handler) CreateBus(w http.ResponseWriter, r *http.Request) {
	var req createBusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	b := transit.Bus{
		ID:                            req.ID,
		Name:                          req.Name,
		Capacity:                      req.Capacity,
		WheelchairSlots:               req.WheelchairSlots,
		CurrentWheelchairAvailability: req.WheelchairSlots,
		Speed:                         req.Speed,
	}
	created, err := h.buses.Create(b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateBus(w http.ResponseWriter, r *http.Request) {
	var patch registry.BusPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.buses.Update(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) DeleteBus(w http.ResponseWriter, r *http.Request) {
	if err := h.buses.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdjustWheelchairSlots(w http.ResponseWriter, r *http.Request) {
	var req slotAdjustment
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	b, err := h.buses.AdjustWheelchairSlots(id, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotAdjustmentResponse{BusID: b.ID, RemainingSlots: b.CurrentWheelchairAvailability, TotalSlots: b.WheelchairSlots})
}
