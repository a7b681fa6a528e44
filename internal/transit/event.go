package transit

import "time"

type EventKind string

const (
	EventProgress         EventKind = "progress"
	EventWheelchairUpdate EventKind = "wheelchair-update"
)

// Event is a committed state change emitted by the trip tracker.
type Event struct {
	Kind    EventKind
	TripID  string
	RouteID string

	// progress
	CurrentStop *Stop
	NextStop    *Stop
	ETA         *int
	ETAStatus   ETAStatus

	WheelchairAvailable bool

	// wheelchair-update
	RemainingSlots int

	Timestamp time.Time
}
