package sim

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"bus-tracker/internal/transit"
)

// Driver is the slice of the trip tracker the manager drives.
type Driver interface {
	List() []transit.Trip
	AdvanceProgress(id string) (transit.TripStatus, error)
}

type Metrics interface {
	SetActiveTrips(n int)
}

// Manager advances running trips one stop per interval, standing in for the
// driver-side progress trigger. Trips become running once their start time of
// day has passed; trips starting within the preload horizon are scheduled.
type Manager struct {
	driver          Driver
	advanceInterval time.Duration
	tz              *time.Location
	refreshInterval time.Duration
	preloadHorizon  time.Duration
	metrics         Metrics
	now             func() time.Time

	mu      sync.Mutex
	running map[string]context.CancelFunc // tripID -> cancel
	wg      sync.WaitGroup

	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup

	scheduled   map[string]context.CancelFunc // tripID -> cancel (not yet started)
	scheduledWG sync.WaitGroup
}

func NewManager(driver Driver, advanceInterval time.Duration, tz *time.Location, refreshInterval, preloadHorizon time.Duration, metrics Metrics) *Manager {
	if tz == nil {
		tz = time.Local
	}
	return &Manager{
		driver:          driver,
		advanceInterval: advanceInterval,
		tz:              tz,
		refreshInterval: refreshInterval,
		preloadHorizon:  preloadHorizon,
		metrics:         metrics,
		now:             time.Now,
		running:         make(map[string]context.CancelFunc),
		scheduled:       make(map[string]context.CancelFunc),
	}
}

// startAt places a trip's start time of day on the same calendar day as now.
func startAt(t transit.Trip, now time.Time) (time.Time, bool) {
	sec, err := transit.ParseClock(t.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	y, mo, d := now.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, now.Location()).Add(time.Duration(sec) * time.Second), true
}

// RefreshActive starts trips that are due and schedules those starting soon.
func (m *Manager) RefreshActive(ctx context.Context) {
	now := m.now().In(m.tz)
	for _, t := range m.driver.List() {
		if t.Terminal() {
			continue
		}
		start, ok := startAt(t, now)
		if !ok {
			continue
		}
		if now.Before(start) {
			if m.preloadHorizon > 0 && start.Sub(now) <= m.preloadHorizon {
				m.scheduleTrip(ctx, t.ID, start.Sub(now))
			}
			continue
		}
		m.startTrip(ctx, t.ID)
	}
}

func (m *Manager) startTrip(parent context.Context, tripID string) {
	m.mu.Lock()
	if _, exists := m.running[tripID]; exists {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.running[tripID] = cancel
	m.wg.Add(1)
	if m.metrics != nil {
		m.metrics.SetActiveTrips(len(m.running))
	}
	m.mu.Unlock()

	log.Printf("auto-advancing trip %s every %s", tripID, m.advanceInterval)
	go func() {
		defer m.wg.Done()
		if err := m.runTrip(ctx, tripID); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("trip %s error: %v", tripID, err)
		}
		m.mu.Lock()
		delete(m.running, tripID)
		if m.metrics != nil {
			m.metrics.SetActiveTrips(len(m.running))
		}
		m.mu.Unlock()
	}()
}

func (m *Manager) runTrip(ctx context.Context, tripID string) error {
	tick := time.NewTicker(m.advanceInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			st, err := m.driver.AdvanceProgress(tripID)
			switch {
			case errors.Is(err, transit.ErrInvalidState):
				log.Printf("finished trip %s", tripID)
				return nil
			case errors.Is(err, transit.ErrNotFound):
				return err
			case err != nil:
				log.Printf("advance trip %s: %v", tripID, err)
				continue
			}
			if st.NextStop == nil {
				log.Printf("finished trip %s at %s", tripID, st.CurrentStop.Name)
				return nil
			}
		}
	}
}

func (m *Manager) scheduleTrip(parent context.Context, tripID string, wait time.Duration) {
	m.mu.Lock()
	if _, running := m.running[tripID]; running {
		m.mu.Unlock()
		return
	}
	if _, exists := m.scheduled[tripID]; exists {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.scheduled[tripID] = cancel
	m.scheduledWG.Add(1)
	m.mu.Unlock()

	log.Printf("scheduled trip %s to start in %s", tripID, wait.Round(time.Second))
	go func() {
		defer m.scheduledWG.Done()
		defer func() {
			m.mu.Lock()
			delete(m.scheduled, tripID)
			m.mu.Unlock()
		}()
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		m.startTrip(parent, tripID)
	}()
}

// StartRefresher launches a background loop that periodically re-reads the
// trip list and starts newly due trips. It does nothing when auto-advance is off.
func (m *Manager) StartRefresher(parent context.Context) {
	if m.advanceInterval <= 0 || m.refreshInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.refreshCancel = cancel
	m.refreshWG.Add(1)
	go func() {
		defer m.refreshWG.Done()
		// immediate refresh on start
		m.RefreshActive(ctx)
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RefreshActive(ctx)
			}
		}
	}()
}

func (m *Manager) Stop() {
	if m.refreshCancel != nil {
		m.refreshCancel()
	}
	m.refreshWG.Wait()
	// cancel scheduled starts
	m.mu.Lock()
	for _, cancel := range m.scheduled {
		cancel()
	}
	m.mu.Unlock()
	m.scheduledWG.Wait()
	m.mu.Lock()
	for _, cancel := range m.running {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Running reports whether a trip is currently being auto-advanced.
func (m *Manager) Running(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[tripID]
	return ok
}

// Scheduled reports whether a trip is waiting for its start time.
func (m *Manager) Scheduled(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.scheduled[tripID]
	return ok
}
