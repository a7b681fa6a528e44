package tracker

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bus-tracker/internal/geo"
	"bus-tracker/internal/transit"
)

// UpcomingLimit caps ListUpcoming; realtime displays only show the next departures.
const UpcomingLimit = 2

// BusRegistry is what the tracker needs from the bus store. All slot counter
// changes go through AdjustWheelchairSlots.
type BusRegistry interface {
	Get(id string) (transit.Bus, error)
	AdjustWheelchairSlots(id string, delta int) (transit.Bus, error)
}

// Publisher receives committed domain events. Publish must not block.
type Publisher interface {
	Publish(ev transit.Event)
}

type Metrics interface {
	ProgressAdvanced()
	WheelchairToggled(available bool)
	Conflict(reason string)
}

type tripEntry struct {
	mu   sync.RWMutex
	trip transit.Trip
}

// Tracker owns trip records and applies progress and wheelchair transitions.
// Mutations on a trip are serialised by the trip's lock; the bus counter is
// guarded by the registry. Lock order is always trip then bus.
type Tracker struct {
	buses   BusRegistry
	pub     Publisher
	metrics Metrics
	now     func() time.Time

	mu    sync.RWMutex
	trips map[string]*tripEntry
	order []string
}

func New(buses BusRegistry, pub Publisher, metrics Metrics) *Tracker {
	return &Tracker{
		buses:   buses,
		pub:     pub,
		metrics: metrics,
		now:     time.Now,
		trips:   make(map[string]*tripEntry),
	}
}

// Create validates and stores a new trip, which starts at its first stop.
// An empty ID is replaced by a generated one. A trip created with its
// wheelchair flag unset consumes a slot on its bus.
func (t *Tracker) Create(trip transit.Trip) (transit.Trip, error) {
	if trip.CurrentStopIndex != 0 {
		return transit.Trip{}, fmt.Errorf("new trip must start at stop 0, got %d: %w", trip.CurrentStopIndex, transit.ErrInvalidArgument)
	}
	return t.insert(trip)
}

// Restore stores a trip loaded from the fleet store, keeping the stop index
// it was saved with. Slot accounting is the same as Create.
func (t *Tracker) Restore(trip transit.Trip) (transit.Trip, error) {
	return t.insert(trip)
}

func (t *Tracker) insert(trip transit.Trip) (transit.Trip, error) {
	if len(trip.Stops) == 0 {
		return transit.Trip{}, fmt.Errorf("trip needs at least one stop: %w", transit.ErrInvalidArgument)
	}
	if _, err := transit.ParseClock(trip.StartTime); err != nil {
		return transit.Trip{}, fmt.Errorf("trip start time: %w", err)
	}
	if trip.CurrentStopIndex < 0 || trip.CurrentStopIndex >= len(trip.Stops) {
		return transit.Trip{}, fmt.Errorf("stop index %d outside [0,%d]: %w", trip.CurrentStopIndex, len(trip.Stops)-1, transit.ErrInvalidArgument)
	}
	for _, s := range trip.Stops {
		if s.DistanceFromPrev < 0 {
			return transit.Trip{}, fmt.Errorf("stop %s has negative distance: %w", s.ID, transit.ErrInvalidArgument)
		}
	}
	if _, err := t.buses.Get(trip.BusID); err != nil {
		return transit.Trip{}, err
	}
	if trip.ID == "" {
		trip.ID = uuid.NewString()
	}
	trip.Stops = append([]transit.Stop(nil), trip.Stops...)
	trip.LastUpdated = t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.trips[trip.ID]; exists {
		return transit.Trip{}, fmt.Errorf("trip %s already exists: %w", trip.ID, transit.ErrConflict)
	}
	if !trip.WheelchairAvailable {
		if _, err := t.buses.AdjustWheelchairSlots(trip.BusID, -1); err != nil {
			return transit.Trip{}, err
		}
	}
	t.trips[trip.ID] = &tripEntry{trip: trip}
	t.order = append(t.order, trip.ID)
	return trip, nil
}

func (t *Tracker) entry(id string) (*tripEntry, error) {
	t.mu.RLock()
	e, ok := t.trips[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("trip %s: %w", id, transit.ErrNotFound)
	}
	return e, nil
}

func (t *Tracker) Get(id string) (transit.Trip, error) {
	e, err := t.entry(id)
	if err != nil {
		return transit.Trip{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trip, nil
}

func (t *Tracker) List() []transit.Trip {
	t.mu.RLock()
	entries := make([]*tripEntry, 0, len(t.order))
	for _, id := range t.order {
		entries = append(entries, t.trips[id])
	}
	t.mu.RUnlock()

	out := make([]transit.Trip, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		out = append(out, e.trip)
		e.mu.RUnlock()
	}
	return out
}

// ListByRoute returns the trips on a route, matching the route case-insensitively.
func (t *Tracker) ListByRoute(routeID string) []transit.Trip {
	var out []transit.Trip
	for _, trip := range t.List() {
		if strings.EqualFold(trip.RouteID, routeID) {
			out = append(out, trip)
		}
	}
	return out
}

// AdvanceProgress moves a trip one stop forward and broadcasts the new position.
func (t *Tracker) AdvanceProgress(id string) (transit.TripStatus, error) {
	e, err := t.entry(id)
	if err != nil {
		return transit.TripStatus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.trip.Terminal() {
		return transit.TripStatus{}, fmt.Errorf("trip %s already at final stop: %w", id, transit.ErrInvalidState)
	}
	bus, err := t.buses.Get(e.trip.BusID)
	if err != nil {
		return transit.TripStatus{}, err
	}

	e.trip.CurrentStopIndex++
	e.trip.LastUpdated = t.stamp(e.trip.LastUpdated)
	status := snapshot(e.trip, bus)

	if t.metrics != nil {
		t.metrics.ProgressAdvanced()
	}
	log.Printf("trip %s advanced to stop %d/%d (%s)", id, status.CurrentStopIndex+1, len(status.Stops), status.CurrentStop.Name)

	cur := status.CurrentStop
	t.publish(transit.Event{
		Kind:                transit.EventProgress,
		TripID:              e.trip.ID,
		RouteID:             e.trip.RouteID,
		CurrentStop:         &cur,
		NextStop:            status.NextStop,
		ETA:                 status.ETAToNextStop,
		ETAStatus:           status.ETAStatus,
		WheelchairAvailable: e.trip.WheelchairAvailable,
		Timestamp:           e.trip.LastUpdated,
	})
	return status, nil
}

// SetWheelchairAvailability toggles the trip's wheelchair flag. Marking a
// trip unavailable consumes a slot on its bus and fails with ErrConflict when
// none is left; marking it available returns the slot. Setting the flag to its
// current value changes nothing.
func (t *Tracker) SetWheelchairAvailability(id string, available bool) (transit.TripStatus, error) {
	e, err := t.entry(id)
	if err != nil {
		return transit.TripStatus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	bus, err := t.buses.Get(e.trip.BusID)
	if err != nil {
		return transit.TripStatus{}, err
	}
	if e.trip.WheelchairAvailable == available {
		return snapshot(e.trip, bus), nil
	}

	delta := 1
	if !available {
		delta = -1
	}
	bus, err = t.buses.AdjustWheelchairSlots(bus.ID, delta)
	if err != nil {
		if t.metrics != nil && !available {
			t.metrics.Conflict("no_wheelchair_slots")
		}
		return transit.TripStatus{}, err
	}
	remaining := bus.CurrentWheelchairAvailability
	if remaining < 0 || remaining > bus.WheelchairSlots {
		panic(fmt.Sprintf("bus %s wheelchair counter %d outside [0,%d]", bus.ID, remaining, bus.WheelchairSlots))
	}

	e.trip.WheelchairAvailable = available
	e.trip.LastUpdated = t.stamp(e.trip.LastUpdated)

	if t.metrics != nil {
		t.metrics.WheelchairToggled(available)
	}
	log.Printf("trip %s wheelchair available=%t, bus %s has %d/%d slots free", id, available, bus.ID, remaining, bus.WheelchairSlots)

	t.publish(transit.Event{
		Kind:                transit.EventWheelchairUpdate,
		TripID:              e.trip.ID,
		RouteID:             e.trip.RouteID,
		WheelchairAvailable: available,
		RemainingSlots:      remaining,
		Timestamp:           e.trip.LastUpdated,
	})
	return snapshot(e.trip, bus), nil
}

// GetStatus computes a fresh status snapshot; nothing is cached.
func (t *Tracker) GetStatus(id string) (transit.TripStatus, error) {
	e, err := t.entry(id)
	if err != nil {
		return transit.TripStatus{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	bus, err := t.buses.Get(e.trip.BusID)
	if err != nil {
		return transit.TripStatus{}, err
	}
	return snapshot(e.trip, bus), nil
}

// ListUpcoming returns the next departures on a route whose start time of
// day is at or after now (minute resolution), earliest first.
func (t *Tracker) ListUpcoming(routeID string, now time.Time) []transit.TripStatus {
	type candidate struct {
		id    string
		start int
	}
	nowSec := now.Hour()*3600 + now.Minute()*60

	var cands []candidate
	for _, trip := range t.ListByRoute(routeID) {
		start, err := transit.ParseClock(trip.StartTime)
		if err != nil {
			continue
		}
		start -= start % 60
		if start >= nowSec {
			cands = append(cands, candidate{trip.ID, start})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].start < cands[j].start })

	out := make([]transit.TripStatus, 0, UpcomingLimit)
	for _, c := range cands {
		if len(out) == UpcomingLimit {
			break
		}
		st, err := t.GetStatus(c.id)
		if err != nil {
			log.Printf("upcoming trip %s skipped: %v", c.id, err)
			continue
		}
		out = append(out, st)
	}
	return out
}

func (t *Tracker) publish(ev transit.Event) {
	if t.pub != nil {
		t.pub.Publish(ev)
	}
}

// stamp returns the current time, never earlier than prev.
func (t *Tracker) stamp(prev time.Time) time.Time {
	now := t.now()
	if now.Before(prev) {
		return prev
	}
	return now
}

func snapshot(trip transit.Trip, bus transit.Bus) transit.TripStatus {
	leg := geo.NextLeg(trip.Stops, trip.CurrentStopIndex, bus.Speed)
	return transit.TripStatus{
		TripID:              trip.ID,
		BusID:               trip.BusID,
		RouteID:             trip.RouteID,
		StartTime:           trip.StartTime,
		Stops:               append([]transit.Stop(nil), trip.Stops...),
		CurrentStopIndex:    trip.CurrentStopIndex,
		CurrentStop:         trip.Stops[trip.CurrentStopIndex],
		NextStop:            leg.Next,
		DistanceToNextStop:  leg.DistanceKm,
		ETAToNextStop:       leg.ETA,
		ETAStatus:           leg.Status,
		WheelchairAvailable: trip.WheelchairAvailable,
		RemainingSlots:      bus.CurrentWheelchairAvailability,
		TotalSlots:          bus.WheelchairSlots,
		LastUpdated:         trip.LastUpdated,
	}
}
