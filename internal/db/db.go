package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bus-tracker/internal/transit"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Fleet is the initial state the tracker starts from.
type Fleet struct {
	Buses []transit.Bus         `json:"buses"`
	Stops []transit.CatalogStop `json:"stops"`
	Trips []transit.Trip        `json:"trips"`
}

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LoadFleet reads buses, stops and trips from the fleet tables:
//
//	buses(id, name, capacity, wheelchair_slots, speed_kmh)
//	stops(id, code, name, lat, lng)
//	trips(id, bus_id, route_id, start_time, current_stop_index, wheelchair_available)
//	trip_stops(trip_id, seq, stop_id, name, scheduled_arrival, lat, lng, distance_from_prev)
//
// trip_stops columns left NULL fall back to the referenced stop.
func LoadFleet(ctx context.Context, db *sql.DB) (Fleet, error) {
	var f Fleet
	var err error
	if f.Buses, err = fetchBuses(ctx, db); err != nil {
		return Fleet{}, err
	}
	if f.Stops, err = fetchStops(ctx, db); err != nil {
		return Fleet{}, err
	}
	if f.Trips, err = fetchTrips(ctx, db); err != nil {
		return Fleet{}, err
	}
	stopsByTrip, err := fetchTripStops(ctx, db)
	if err != nil {
		return Fleet{}, err
	}
	for i := range f.Trips {
		f.Trips[i].Stops = stopsByTrip[f.Trips[i].ID]
	}
	return f, nil
}

func fetchBuses(ctx context.Context, db *sql.DB) ([]transit.Bus, error) {
	q := `SELECT id, COALESCE(name, ''), COALESCE(capacity, 0), COALESCE(wheelchair_slots, 0), COALESCE(speed_kmh, 0)
          FROM buses ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query buses: %w", err)
	}
	defer rows.Close()
	var out []transit.Bus
	for rows.Next() {
		var b transit.Bus
		if err := rows.Scan(&b.ID, &b.Name, &b.Capacity, &b.WheelchairSlots, &b.Speed); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func fetchStops(ctx context.Context, db *sql.DB) ([]transit.CatalogStop, error) {
	q := `SELECT id, COALESCE(code, ''), COALESCE(name, ''), COALESCE(lat, 0), COALESCE(lng, 0)
          FROM stops ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()
	var out []transit.CatalogStop
	for rows.Next() {
		var s transit.CatalogStop
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Location.Lat, &s.Location.Lng); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func fetchTrips(ctx context.Context, db *sql.DB) ([]transit.Trip, error) {
	q := `SELECT id, bus_id, route_id, COALESCE(start_time::text, '08:00'),
                 COALESCE(current_stop_index, 0), COALESCE(wheelchair_available, true)
          FROM trips ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()
	var out []transit.Trip
	for rows.Next() {
		var t transit.Trip
		var start string
		if err := rows.Scan(&t.ID, &t.BusID, &t.RouteID, &start, &t.CurrentStopIndex, &t.WheelchairAvailable); err != nil {
			return nil, err
		}
		t.StartTime = normalizeClock(start)
		out = append(out, t)
	}
	return out, rows.Err()
}

func fetchTripStops(ctx context.Context, db *sql.DB) (map[string][]transit.Stop, error) {
	q := `SELECT ts.trip_id,
                 ts.stop_id,
                 COALESCE(ts.name, s.name, ''),
                 COALESCE(ts.scheduled_arrival::text, ''),
                 COALESCE(ts.lat, s.lat, 0),
                 COALESCE(ts.lng, s.lng, 0),
                 COALESCE(ts.distance_from_prev, 0)
          FROM trip_stops ts
          LEFT JOIN stops s ON s.id = ts.stop_id
          ORDER BY ts.trip_id, ts.seq`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query trip_stops: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]transit.Stop)
	for rows.Next() {
		var tripID, arrival string
		var s transit.Stop
		if err := rows.Scan(&tripID, &s.ID, &s.Name, &arrival, &s.Location.Lat, &s.Location.Lng, &s.DistanceFromPrev); err != nil {
			return nil, err
		}
		s.ScheduledArrival = normalizeClock(arrival)
		out[tripID] = append(out[tripID], s)
	}
	return out, rows.Err()
}

// normalizeClock trims a Postgres time value such as "08:05:00" to "08:05".
// Values that do not parse are returned unchanged and rejected later.
func normalizeClock(s string) string {
	sec, err := transit.ParseClock(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%02d:%02d", sec/3600, sec%3600/60)
}
