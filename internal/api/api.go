package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bus-tracker/internal/broadcast"
	"bus-tracker/internal/geo"
	"bus-tracker/internal/registry"
	"bus-tracker/internal/transit"
)

// TripService defines the trip operations exposed over HTTP.
type TripService interface {
	Create(trip transit.Trip) (transit.Trip, error)
	Get(id string) (transit.Trip, error)
	List() []transit.Trip
	ListByRoute(routeID string) []transit.Trip
	AdvanceProgress(id string) (transit.TripStatus, error)
	SetWheelchairAvailability(id string, available bool) (transit.TripStatus, error)
	GetStatus(id string) (transit.TripStatus, error)
	ListUpcoming(routeID string, now time.Time) []transit.TripStatus
}

type BusStore interface {
	Create(b transit.Bus) (transit.Bus, error)
	Get(id string) (transit.Bus, error)
	List() []transit.Bus
	Update(id string, p registry.BusPatch) (transit.Bus, error)
	Delete(id string) error
	AdjustWheelchairSlots(id string, delta int) (transit.Bus, error)
}

type StopCatalog interface {
	Get(id string) (transit.CatalogStop, error)
	List() []transit.CatalogStop
	Search(term string) []transit.CatalogStop
	Nearby(origin transit.Coordinate, radiusKm float64) []geo.Ranked
}

type Subscriber interface {
	Subscribe(channels ...string) *broadcast.Subscription
}

// Handler serves the REST surface over the tracker core.
type Handler struct {
	trips  TripService
	buses  BusStore
	stops  StopCatalog
	events Subscriber
	tz     *time.Location
	now    func() time.Time
}

func NewHandler(trips TripService, buses BusStore, stops StopCatalog, events Subscriber, tz *time.Location) *Handler {
	if tz == nil {
		tz = time.Local
	}
	return &Handler{trips: trips, buses: buses, stops: stops, events: events, tz: tz, now: time.Now}
}

// Router builds the chi router with CORS and request logging.
func (h *Handler) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"trips":     len(h.trips.List()),
			"buses":     len(h.buses.List()),
			"timestamp": time.Now().UTC(),
		})
	})

	r.Route("/buses", func(r chi.Router) {
		r.Get("/", h.ListBuses)
		r.Post("/", h.CreateBus)
		r.Get("/{id}", h.GetBus)
		r.Put("/{id}", h.UpdateBus)
		r.Delete("/{id}", h.DeleteBus)
		r.Post("/{id}/wheelchair-slots", h.AdjustWheelchairSlots)
	})

	r.Route("/stops", func(r chi.Router) {
		r.Get("/", h.ListStops)
		r.Get("/nearby", h.NearbyStops)
		r.Get("/search/{term}", h.SearchStops)
		r.Get("/{id}", h.GetStop)
	})

	r.Route("/trips", func(r chi.Router) {
		r.Get("/", h.ListTrips)
		r.Post("/", h.CreateTrip)
		r.Get("/{id}", h.GetTrip)
		r.Get("/{id}/status", h.GetTripStatus)
		r.Put("/{id}/progress", h.AdvanceProgress)
		r.Put("/{id}/wheelchair", h.SetWheelchair)
	})

	r.Get("/routes/{routeId}/trips", h.ListRouteTrips)
	r.Get("/routes/{routeId}/upcoming", h.ListUpcoming)

	r.Get("/events", h.Events)
	return r
}

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, transit.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, transit.ErrInvalidState), errors.Is(err, transit.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, transit.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Status: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, transit.ErrInvalidArgument)
	}
	return nil
}
