package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollector_ExposesTrackerMetrics(t *testing.T) {
	c := NewCollector(15 * time.Second)
	c.ProgressAdvanced()
	c.WheelchairToggled(false)
	c.Conflict("no_wheelchair_slots")
	c.EventPublished("nats", time.Millisecond)
	c.PublishError("amqp")
	c.EventDropped()
	c.SetSubscribers(3)
	c.SetConnected("nats", true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"tracker_progress_total 1",
		`tracker_wheelchair_toggles_total{available="false"} 1`,
		`tracker_conflicts_total{reason="no_wheelchair_slots"} 1`,
		`tracker_events_published_total{transport="nats"} 1`,
		`tracker_publish_errors_total{transport="amqp"} 1`,
		"tracker_events_dropped_total 1",
		"tracker_subscribers 3",
		`tracker_transport_connected{transport="nats"} 1`,
		"tracker_advance_interval_seconds 15",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
