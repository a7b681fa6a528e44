package registry

import (
	"fmt"
	"strings"
	"sync"

	"bus-tracker/internal/geo"
	"bus-tracker/internal/transit"
)

// DefaultNearbyRadiusKm is used when a nearby query gives no radius.
const DefaultNearbyRadiusKm = 1.0

// Stops is a read-mostly catalog of stop geometry.
type Stops struct {
	mu    sync.RWMutex
	byID  map[string]transit.CatalogStop
	order []string
}

func NewStops() *Stops {
	return &Stops{byID: make(map[string]transit.CatalogStop)}
}

func (c *Stops) Add(s transit.CatalogStop) error {
	if s.ID == "" {
		return fmt.Errorf("stop without id: %w", transit.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[s.ID]; !ok {
		c.order = append(c.order, s.ID)
	}
	c.byID[s.ID] = s
	return nil
}

func (c *Stops) Get(id string) (transit.CatalogStop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	if !ok {
		return transit.CatalogStop{}, fmt.Errorf("stop %s: %w", id, transit.ErrNotFound)
	}
	return s, nil
}

func (c *Stops) List() []transit.CatalogStop {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]transit.CatalogStop, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Search matches term case-insensitively against stop code and name.
func (c *Stops) Search(term string) []transit.CatalogStop {
	term = strings.ToLower(strings.TrimSpace(term))
	var out []transit.CatalogStop
	for _, s := range c.List() {
		if strings.Contains(strings.ToLower(s.Code), term) || strings.Contains(strings.ToLower(s.Name), term) {
			out = append(out, s)
		}
	}
	return out
}

// Nearby returns stops within radiusKm of origin, nearest first.
func (c *Stops) Nearby(origin transit.Coordinate, radiusKm float64) []geo.Ranked {
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	return geo.Within(c.List(), origin, radiusKm)
}
