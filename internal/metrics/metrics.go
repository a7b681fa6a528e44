package metrics

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveTrips prometheus.Gauge
	Subscribers prometheus.Gauge

	ProgressTotal     prometheus.Counter
	WheelchairToggles *prometheus.CounterVec // available label: true|false
	Conflicts         *prometheus.CounterVec // reason label

	EventsPublished *prometheus.CounterVec // transport label
	PublishErrs     *prometheus.CounterVec // transport label
	EventsDropped   prometheus.Counter

	TransportConnected *prometheus.GaugeVec // transport label

	PublishDuration prometheus.Histogram

	AdvanceInterval prometheus.Gauge // seconds
}

func NewCollector(advanceInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_trips",
			Help: "Number of trips currently driven by the auto-advance loop.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_subscribers",
			Help: "Number of in-process broadcast subscriptions.",
		}),
		ProgressTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_progress_total",
			Help: "Total stop-to-stop progress transitions.",
		}),
		WheelchairToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_wheelchair_toggles_total",
			Help: "Total committed wheelchair availability changes.",
		}, []string{"available"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_conflicts_total",
			Help: "Requests refused because of the wheelchair capacity bounds.",
		}, []string{"reason"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_events_published_total",
			Help: "Total payloads handed to a broadcast transport.",
		}, []string{"transport"}),
		PublishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_publish_errors_total",
			Help: "Total broadcast transport publish errors.",
		}, []string{"transport"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_events_dropped_total",
			Help: "Events dropped because the broadcast queue was full.",
		}),
		TransportConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracker_transport_connected",
			Help: "1 if the broadcast transport connection is established, 0 otherwise.",
		}, []string{"transport"}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to publish one payload on a transport.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		AdvanceInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_advance_interval_seconds",
			Help: "Auto-advance interval in seconds, 0 when disabled.",
		}),
	}

	reg.MustRegister(
		c.ActiveTrips, c.Subscribers,
		c.ProgressTotal, c.WheelchairToggles, c.Conflicts,
		c.EventsPublished, c.PublishErrs, c.EventsDropped,
		c.TransportConnected, c.PublishDuration, c.AdvanceInterval,
	)

	c.AdvanceInterval.Set(advanceInterval.Seconds())

	return c
}

func (c *Collector) ProgressAdvanced() { c.ProgressTotal.Inc() }

func (c *Collector) WheelchairToggled(available bool) {
	c.WheelchairToggles.WithLabelValues(strconv.FormatBool(available)).Inc()
}

func (c *Collector) Conflict(reason string) { c.Conflicts.WithLabelValues(reason).Inc() }

func (c *Collector) EventPublished(transport string, d time.Duration) {
	c.EventsPublished.WithLabelValues(transport).Inc()
	c.PublishDuration.Observe(d.Seconds())
}

func (c *Collector) PublishError(transport string) { c.PublishErrs.WithLabelValues(transport).Inc() }

func (c *Collector) EventDropped() { c.EventsDropped.Inc() }

func (c *Collector) SetSubscribers(n int) { c.Subscribers.Set(float64(n)) }

func (c *Collector) SetActiveTrips(n int) { c.ActiveTrips.Set(float64(n)) }

func (c *Collector) SetConnected(transport string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	c.TransportConnected.WithLabelValues(transport).Set(v)
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
