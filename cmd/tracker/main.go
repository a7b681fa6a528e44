package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bus-tracker/internal/api"
	"bus-tracker/internal/broadcast"
	"bus-tracker/internal/config"
	"bus-tracker/internal/db"
	"bus-tracker/internal/metrics"
	"bus-tracker/internal/publisher"
	"bus-tracker/internal/registry"
	"bus-tracker/internal/sim"
	"bus-tracker/internal/tracker"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcol := metrics.NewCollector(cfg.AdvanceInterval)
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	// Broker fan-out, if any
	var transports []broadcast.Transport
	switch cfg.Transport {
	case config.TransportNATS:
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, mcol)
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		transports = append(transports, pub)
	case config.TransportAMQP:
		pub, err := publisher.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, mcol)
		if err != nil {
			log.Fatalf("amqp error: %v", err)
		}
		defer pub.Close()
		transports = append(transports, pub)
	}

	hub := broadcast.NewHub(cfg.BroadcastBuffer, mcol, cfg.LogPublishes, transports...)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	buses := registry.NewBuses()
	stops := registry.NewStops()
	trips := tracker.New(buses, hub, mcol)

	fleet, err := loadFleet(ctx, cfg)
	if err != nil {
		log.Fatalf("load fleet error: %v", err)
	}
	if err := seed(fleet, buses, stops, trips); err != nil {
		log.Fatalf("seed error: %v", err)
	}
	log.Printf("loaded %d buses, %d stops, %d trips", len(fleet.Buses), len(fleet.Stops), len(fleet.Trips))

	// Auto-advance driver; disabled unless an interval is configured
	mgr := sim.NewManager(trips, cfg.AdvanceInterval, cfg.Location, cfg.TripsRefreshInterval, cfg.PreloadHorizon, mcol)
	if cfg.AdvanceInterval > 0 {
		if cfg.TripsRefreshInterval > 0 {
			mgr.StartRefresher(ctx)
		} else {
			mgr.RefreshActive(ctx)
		}
	}

	h := api.NewHandler(trips, buses, stops, hub, cfg.Location)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()

	// Block until context cancelled
	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	hub.Close()
	_ = srv.Shutdown(shutdownCtx)
	mgr.Stop()
	<-hubDone
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}

func loadFleet(ctx context.Context, cfg *config.Config) (db.Fleet, error) {
	if cfg.DatabaseURL == "" {
		return db.LoadSeed(cfg.SeedFile)
	}
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return db.Fleet{}, err
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return db.Fleet{}, err
	}
	return db.LoadFleet(ctx, sqlDB)
}

// seed loads the fleet into the registries. Bus counters start full and each
// trip restored with its slot taken consumes one through the tracker, so the
// counters always match the trips that exist. Restored trips keep their stop index.
func seed(f db.Fleet, buses *registry.Buses, stops *registry.Stops, trips *tracker.Tracker) error {
	for _, b := range f.Buses {
		b.CurrentWheelchairAvailability = b.WheelchairSlots
		if _, err := buses.Create(b); err != nil {
			return err
		}
	}
	for _, s := range f.Stops {
		if err := stops.Add(s); err != nil {
			return err
		}
	}
	for _, t := range f.Trips {
		if _, err := trips.Restore(t); err != nil {
			log.Printf("skip trip %s: %v", t.ID, err)
		}
	}
	return nil
}
