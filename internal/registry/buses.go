package registry

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"bus-tracker/internal/transit"
)

type busEntry struct {
	mu  sync.Mutex
	bus transit.Bus
}

// Buses is the in-memory bus registry. Each bus carries its own lock, so
// slot adjustments on one bus never contend with another.
type Buses struct {
	mu    sync.RWMutex
	byID  map[string]*busEntry
	order []string
}

func NewBuses() *Buses {
	return &Buses{byID: make(map[string]*busEntry)}
}

// BusPatch holds the fields of a bus that may be changed after creation.
// Nil fields are left untouched.
type BusPatch struct {
	Name            *string  `json:"name"`
	Capacity        *int     `json:"capacity"`
	WheelchairSlots *int     `json:"wheelchairSlots"`
	Speed           *float64 `json:"speed"`
}

func validateBus(b transit.Bus) error {
	switch {
	case b.Capacity < 0:
		return fmt.Errorf("capacity %d is negative: %w", b.Capacity, transit.ErrInvalidArgument)
	case b.WheelchairSlots < 0:
		return fmt.Errorf("wheelchair slots %d is negative: %w", b.WheelchairSlots, transit.ErrInvalidArgument)
	case b.CurrentWheelchairAvailability < 0 || b.CurrentWheelchairAvailability > b.WheelchairSlots:
		return fmt.Errorf("available slots %d outside [0,%d]: %w", b.CurrentWheelchairAvailability, b.WheelchairSlots, transit.ErrInvalidArgument)
	case b.Speed < 0 || math.IsNaN(b.Speed) || math.IsInf(b.Speed, 0):
		return fmt.Errorf("speed %v must be a non-negative number: %w", b.Speed, transit.ErrInvalidArgument)
	}
	return nil
}

// Create registers a bus. An empty ID is replaced by a generated one.
func (r *Buses) Create(b transit.Bus) (transit.Bus, error) {
	if err := validateBus(b); err != nil {
		return transit.Bus{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[b.ID]; exists {
		return transit.Bus{}, fmt.Errorf("bus %s already exists: %w", b.ID, transit.ErrConflict)
	}
	r.byID[b.ID] = &busEntry{bus: b}
	r.order = append(r.order, b.ID)
	return b, nil
}

func (r *Buses) entry(id string) (*busEntry, error) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bus %s: %w", id, transit.ErrNotFound)
	}
	return e, nil
}

// Get returns a copy of the bus record.
func (r *Buses) Get(id string) (transit.Bus, error) {
	e, err := r.entry(id)
	if err != nil {
		return transit.Bus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bus, nil
}

func (r *Buses) List() []transit.Bus {
	r.mu.RLock()
	entries := make([]*busEntry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.byID[id])
	}
	r.mu.RUnlock()

	out := make([]transit.Bus, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.bus)
		e.mu.Unlock()
	}
	return out
}

// Update applies a patch. Changing the declared wheelchair capacity keeps the
// number of consumed slots and fails with ErrConflict when the new capacity
// is smaller than that number.
func (r *Buses) Update(id string, p BusPatch) (transit.Bus, error) {
	e, err := r.entry(id)
	if err != nil {
		return transit.Bus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.bus
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Capacity != nil {
		b.Capacity = *p.Capacity
	}
	if p.Speed != nil {
		b.Speed = *p.Speed
	}
	if p.WheelchairSlots != nil {
		consumed := e.bus.ConsumedSlots()
		if *p.WheelchairSlots < consumed {
			return transit.Bus{}, fmt.Errorf("bus %s has %d slots in use, cannot shrink to %d: %w", id, consumed, *p.WheelchairSlots, transit.ErrConflict)
		}
		b.WheelchairSlots = *p.WheelchairSlots
		b.CurrentWheelchairAvailability = *p.WheelchairSlots - consumed
	}
	if err := validateBus(b); err != nil {
		return transit.Bus{}, err
	}
	e.bus = b
	return b, nil
}

func (r *Buses) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("bus %s: %w", id, transit.ErrNotFound)
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// AdjustWheelchairSlots is the only mutator of a bus's available-slot counter.
// delta must be +1 (slot returned) or -1 (slot consumed). The bounds check and
// the write happen under the bus lock, and the returned bus is the state the
// adjustment was committed against.
func (r *Buses) AdjustWheelchairSlots(id string, delta int) (transit.Bus, error) {
	if delta != 1 && delta != -1 {
		return transit.Bus{}, fmt.Errorf("slot adjustment %d must be +1 or -1: %w", delta, transit.ErrInvalidArgument)
	}
	e, err := r.entry(id)
	if err != nil {
		return transit.Bus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.bus.CurrentWheelchairAvailability + delta
	if next < 0 {
		return e.bus, fmt.Errorf("bus %s: no wheelchair slots available: %w", id, transit.ErrConflict)
	}
	if next > e.bus.WheelchairSlots {
		return e.bus, fmt.Errorf("bus %s: all %d wheelchair slots already free: %w", id, e.bus.WheelchairSlots, transit.ErrConflict)
	}
	e.bus.CurrentWheelchairAvailability = next
	return e.bus, nil
}
