package transit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinate was never set. (0,0) is in the Gulf
// of Guinea, so it is treated as missing data.
func (c Coordinate) IsZero() bool { return c.Lat == 0 && c.Lng == 0 }

type Bus struct {
	ID                            string  `json:"id"`
	Name                          string  `json:"name"`
	Capacity                      int     `json:"capacity"`
	WheelchairSlots               int     `json:"wheelchairSlots"`
	CurrentWheelchairAvailability int     `json:"currentWheelchairAvailability"`
	Speed                         float64 `json:"speed"` // km/h
}

// ConsumedSlots is the number of wheelchair slots currently taken by trips.
func (b Bus) ConsumedSlots() int { return b.WheelchairSlots - b.CurrentWheelchairAvailability }

// Stop is a waypoint as used inside a trip.
type Stop struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	ScheduledArrival string     `json:"scheduledArrival"`
	Location         Coordinate `json:"location"`
	DistanceFromPrev float64    `json:"distanceFromPrev"` // km
}

// CatalogStop is a stop as known to the stop catalog, independent of any trip.
type CatalogStop struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Location  Coordinate `json:"location"`
	Amenities []string   `json:"amenities,omitempty"`
}

type Trip struct {
	ID                  string    `json:"id"`
	BusID               string    `json:"busId"`
	RouteID             string    `json:"routeId"`
	StartTime           string    `json:"startTime"` // HH:MM, local time of day
	Stops               []Stop    `json:"stops"`
	CurrentStopIndex    int       `json:"currentStopIndex"`
	WheelchairAvailable bool      `json:"wheelchairAvailable"`
	LastUpdated         time.Time `json:"lastUpdated"`
}

// Terminal reports whether the trip sits at its last stop.
func (t Trip) Terminal() bool { return t.CurrentStopIndex >= len(t.Stops)-1 }

// ETAStatus qualifies the ETA carried by a status snapshot or event.
type ETAStatus string

const (
	ETAMoving     ETAStatus = "moving"
	ETAStationary ETAStatus = "stationary"
	ETAArrived    ETAStatus = "arrived"
	// ETAUnknown marks a leg with no declared distance and no usable coordinates.
	ETAUnknown    ETAStatus = "unknown"
)

// TripStatus is a read-only projection recomputed on every read.
type TripStatus struct {
	TripID              string    `json:"tripId"`
	BusID               string    `json:"busId"`
	RouteID             string    `json:"routeId"`
	StartTime           string    `json:"startTime"`
	Stops               []Stop    `json:"stops"`
	CurrentStopIndex    int       `json:"currentStopIndex"`
	CurrentStop         Stop      `json:"currentStop"`
	NextStop            *Stop     `json:"nextStop"`
	DistanceToNextStop  float64   `json:"distanceToNextStop"`
	ETAToNextStop       *int      `json:"etaToNextStop"`
	ETAStatus           ETAStatus `json:"etaStatus"`
	WheelchairAvailable bool      `json:"wheelchairAvailable"`
	RemainingSlots      int       `json:"remainingSlots"`
	TotalSlots          int       `json:"totalSlots"`
	LastUpdated         time.Time `json:"lastUpdated"`
}

// ParseClock parses HH:MM or HH:MM:SS into seconds since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, ErrInvalidArgument)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, ErrInvalidArgument)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, ErrInvalidArgument)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid second in %q: %w", s, ErrInvalidArgument)
		}
	}
	return h*3600 + m*60 + sec, nil
}
