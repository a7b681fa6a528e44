package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"bus-tracker/internal/transit"
)

// RouteUpdatesChannel receives every wheelchair update regardless of route.
const RouteUpdatesChannel = "route-updates"

// isoMillis matches the ISO-8601 form browsers produce with toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func TripChannel(tripID string) string   { return "trip-" + tripID }
func RouteChannel(routeID string) string { return "route-" + routeID }

// Channels lists every channel an event is delivered to.
func Channels(ev transit.Event) []string {
	switch ev.Kind {
	case transit.EventProgress:
		return []string{TripChannel(ev.TripID)}
	case transit.EventWheelchairUpdate:
		return []string{TripChannel(ev.TripID), RouteChannel(ev.RouteID), RouteUpdatesChannel}
	}
	return nil
}

type progressPayload struct {
	Type                string            `json:"type"`
	TripID              string            `json:"tripId"`
	RouteID             string            `json:"routeId"`
	CurrentStop         *transit.Stop     `json:"currentStop"`
	NextStop            *transit.Stop     `json:"nextStop"`
	ETA                 *int              `json:"eta"`
	ETAStatus           transit.ETAStatus `json:"etaStatus"`
	WheelchairAvailable bool              `json:"wheelchairAvailable"`
	Timestamp           string            `json:"timestamp"`
}

type wheelchairPayload struct {
	Type                string `json:"type"`
	TripID              string `json:"tripId"`
	RouteID             string `json:"routeId"`
	WheelchairAvailable bool   `json:"wheelchairAvailable"`
	RemainingSlots      int    `json:"remainingSlots"`
	Timestamp           string `json:"timestamp"`
}

// Encode renders the wire payload for an event.
func Encode(ev transit.Event) ([]byte, error) {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.UTC().Format(isoMillis)
	switch ev.Kind {
	case transit.EventProgress:
		return json.Marshal(progressPayload{
			Type:                string(ev.Kind),
			TripID:              ev.TripID,
			RouteID:             ev.RouteID,
			CurrentStop:         ev.CurrentStop,
			NextStop:            ev.NextStop,
			ETA:                 ev.ETA,
			ETAStatus:           ev.ETAStatus,
			WheelchairAvailable: ev.WheelchairAvailable,
			Timestamp:           stamp,
		})
	case transit.EventWheelchairUpdate:
		return json.Marshal(wheelchairPayload{
			Type:                string(ev.Kind),
			TripID:              ev.TripID,
			RouteID:             ev.RouteID,
			WheelchairAvailable: ev.WheelchairAvailable,
			RemainingSlots:      ev.RemainingSlots,
			Timestamp:           stamp,
		})
	}
	return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
}
