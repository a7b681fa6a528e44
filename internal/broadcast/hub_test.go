package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"bus-tracker/internal/transit"
)

type recordedPublish struct {
	channel string
	payload []byte
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []recordedPublish
	err  error
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Publish(channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recordedPublish{channel, payload})
	return f.err
}

func (f *fakeTransport) channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.sent {
		out = append(out, p.channel)
	}
	return out
}

type countingMetrics struct {
	mu                         sync.Mutex
	published, errors, dropped int
	subscribers                int
}

func (m *countingMetrics) EventPublished(string, time.Duration) { m.mu.Lock(); m.published++; m.mu.Unlock() }
func (m *countingMetrics) PublishError(string)                  { m.mu.Lock(); m.errors++; m.mu.Unlock() }
func (m *countingMetrics) EventDropped()                        { m.mu.Lock(); m.dropped++; m.mu.Unlock() }
func (m *countingMetrics) SetSubscribers(n int)                 { m.mu.Lock(); m.subscribers = n; m.mu.Unlock() }

func startHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func receive(t *testing.T, s *Subscription) Message {
	t.Helper()
	select {
	case m := <-s.C:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestChannels(t *testing.T) {
	progress := transit.Event{Kind: transit.EventProgress, TripID: "T1", RouteID: "R9"}
	if got := Channels(progress); !reflect.DeepEqual(got, []string{"trip-T1"}) {
		t.Errorf("progress channels = %v", got)
	}
	wc := transit.Event{Kind: transit.EventWheelchairUpdate, TripID: "T1", RouteID: "R9"}
	want := []string{"trip-T1", "route-R9", RouteUpdatesChannel}
	if got := Channels(wc); !reflect.DeepEqual(got, want) {
		t.Errorf("wheelchair channels = %v, want %v", got, want)
	}
}

func TestEncode_ProgressAtTerminal(t *testing.T) {
	zero := 0
	stop := transit.Stop{ID: "S1", Name: "Depot"}
	ev := transit.Event{
		Kind:        transit.EventProgress,
		TripID:      "T1",
		CurrentStop: &stop,
		ETA:         &zero,
		ETAStatus:   transit.ETAArrived,
		Timestamp:   time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC),
	}
	b, err := Encode(ev)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "progress" {
		t.Errorf("type = %v", got["type"])
	}
	if v, ok := got["nextStop"]; !ok || v != nil {
		t.Errorf("nextStop = %v (present %v), want explicit null", v, ok)
	}
	if got["eta"] != float64(0) {
		t.Errorf("eta = %v, want 0", got["eta"])
	}
	if got["timestamp"] != "2026-03-01T08:30:00.000Z" {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
}

func TestEncode_UnknownKind(t *testing.T) {
	if _, err := Encode(transit.Event{Kind: "teleport"}); err == nil {
		t.Error("Encode should reject unknown kinds")
	}
}

func TestHub_WheelchairFanOut(t *testing.T) {
	tr := &fakeTransport{}
	h := NewHub(8, nil, false, tr)
	startHub(t, h)

	tripSub := h.Subscribe(TripChannel("T1"))
	defer tripSub.Close()
	routeSub := h.Subscribe(RouteChannel("R1"))
	defer routeSub.Close()
	allSub := h.Subscribe(RouteUpdatesChannel)
	defer allSub.Close()
	otherSub := h.Subscribe(RouteChannel("R2"))
	defer otherSub.Close()

	h.Publish(transit.Event{Kind: transit.EventWheelchairUpdate, TripID: "T1", RouteID: "R1", RemainingSlots: 1})

	for _, s := range []*Subscription{tripSub, routeSub, allSub} {
		m := receive(t, s)
		var p map[string]any
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if p["type"] != "wheelchair-update" || p["remainingSlots"] != float64(1) || p["tripId"] != "T1" {
			t.Errorf("payload on %s = %v", m.Channel, p)
		}
	}

	select {
	case m := <-otherSub.C:
		t.Errorf("unrelated route received %s", m.Channel)
	case <-time.After(50 * time.Millisecond):
	}

	want := []string{"trip-T1", "route-R1", RouteUpdatesChannel}
	if got := tr.channels(); !reflect.DeepEqual(got, want) {
		t.Errorf("transport channels = %v, want %v", got, want)
	}
}

func TestHub_ProgressTripOnly(t *testing.T) {
	tr := &fakeTransport{}
	h := NewHub(8, nil, false, tr)
	startHub(t, h)

	tripSub := h.Subscribe(TripChannel("T1"))
	defer tripSub.Close()

	h.Publish(transit.Event{Kind: transit.EventProgress, TripID: "T1", RouteID: "R1"})
	m := receive(t, tripSub)
	if m.Channel != "trip-T1" {
		t.Errorf("channel = %s", m.Channel)
	}
	if got := tr.channels(); !reflect.DeepEqual(got, []string{"trip-T1"}) {
		t.Errorf("transport channels = %v", got)
	}
}

func TestHub_TransportErrorCounted(t *testing.T) {
	m := &countingMetrics{}
	tr := &fakeTransport{err: errors.New("broker down")}
	h := NewHub(8, m, false, tr)
	sub := h.Subscribe(TripChannel("T1"))
	defer sub.Close()
	startHub(t, h)

	h.Publish(transit.Event{Kind: transit.EventProgress, TripID: "T1"})
	receive(t, sub)

	// the transport runs after local delivery; wait for it
	deadline := time.Now().Add(2 * time.Second)
	for {
		m.mu.Lock()
		errs := m.errors
		m.mu.Unlock()
		if errs == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("publish errors = %d, want 1", errs)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_DropsWhenQueueFull(t *testing.T) {
	m := &countingMetrics{}
	h := NewHub(1, m, false)
	h.Publish(transit.Event{Kind: transit.EventProgress, TripID: "T1"})
	h.Publish(transit.Event{Kind: transit.EventProgress, TripID: "T1"})
	if m.dropped != 1 {
		t.Errorf("dropped = %d, want 1", m.dropped)
	}
}

func TestSubscription_Close(t *testing.T) {
	m := &countingMetrics{}
	h := NewHub(8, m, false)
	startHub(t, h)

	s := h.Subscribe(TripChannel("T1"))
	if m.subscribers != 1 {
		t.Errorf("subscribers = %d, want 1", m.subscribers)
	}
	s.Close()
	s.Close()
	if m.subscribers != 0 {
		t.Errorf("subscribers after close = %d, want 0", m.subscribers)
	}
	if _, ok := <-s.C; ok {
		t.Error("closed subscription channel should be closed")
	}
	// publishing after close must not panic
	h.Publish(transit.Event{Kind: transit.EventProgress, TripID: "T1"})
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	m := &countingMetrics{}
	h := NewHub(8, m, false)
	a := h.Subscribe(TripChannel("T1"), RouteUpdatesChannel)
	b := h.Subscribe(RouteChannel("R7"))

	h.Close()
	for _, s := range []*Subscription{a, b} {
		if _, ok := <-s.C; ok {
			t.Error("subscription should be closed")
		}
	}
	if m.subscribers != 0 {
		t.Errorf("subscribers = %d, want 0", m.subscribers)
	}
}
