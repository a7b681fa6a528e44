package geo

import (
	"math"
	"sort"

	"bus-tracker/internal/transit"
)

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle (haversine) distance between two points in km.
func DistanceKm(a, b transit.Coordinate) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h a hair above 1 for antipodal points
	if h > 1 {
		h = 1
	}
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// EtaMinutes returns round(distance / speed * 60), at least 1 for any
// positive distance so that 0 only ever means "there". ok is false when the
// bus is stationary (speed <= 0) and the ETA is undefined.
func EtaMinutes(distanceKm, speedKmh float64) (minutes int, ok bool) {
	if speedKmh <= 0 || math.IsNaN(speedKmh) {
		return 0, false
	}
	if distanceKm <= 0 {
		return 0, true
	}
	return max(1, int(math.Round(distanceKm/speedKmh*60))), true
}

// SegmentKm is the distance from cur to next: the declared distance on next
// when present, otherwise the great-circle distance between the two stops.
func SegmentKm(cur, next transit.Stop) float64 {
	if next.DistanceFromPrev > 0 {
		return next.DistanceFromPrev
	}
	if cur.Location.IsZero() || next.Location.IsZero() {
		return 0
	}
	return DistanceKm(cur.Location, next.Location)
}

// Leg is the geometry between a trip's current stop and the following one.
type Leg struct {
	Next       *transit.Stop
	DistanceKm float64
	ETA        *int
	Status     transit.ETAStatus
}

// NextLeg computes distance and ETA from stops[idx] to stops[idx+1] at the given speed.
// At the last stop the leg has no next stop, zero distance and a zero ETA. A
// leg whose length is unknown (no declared distance, missing coordinates) has
// no ETA.
func NextLeg(stops []transit.Stop, idx int, speedKmh float64) Leg {
	if idx+1 >= len(stops) {
		zero := 0
		return Leg{ETA: &zero, Status: transit.ETAArrived}
	}
	next := stops[idx+1]
	leg := Leg{Next: &next, DistanceKm: SegmentKm(stops[idx], next)}
	eta, ok := EtaMinutes(leg.DistanceKm, speedKmh)
	switch {
	case !ok:
		leg.Status = transit.ETAStationary
	case leg.DistanceKm <= 0:
		leg.Status = transit.ETAUnknown
	default:
		leg.ETA = &eta
		leg.Status = transit.ETAMoving
	}
	return leg
}

// Ranked is a catalog stop paired with its distance from a query point.
type Ranked struct {
	Stop       transit.CatalogStop
	DistanceKm float64
}

// Within returns the stops no further than radiusKm from origin, nearest first.
func Within(stops []transit.CatalogStop, origin transit.Coordinate, radiusKm float64) []Ranked {
	var out []Ranked
	for _, s := range stops {
		d := DistanceKm(origin, s.Location)
		if d <= radiusKm {
			out = append(out, Ranked{Stop: s, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}
