package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"traffic-telemetry-api/config"
	"traffic-telemetry-api/database"
	"traffic-telemetry-api/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const snapshotTTL = 10 * time.Minute

var (
	cyclesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_monitor_cycles_failed_total",
		Help: "Total number of snapshot cycles that failed.",
	})
	snapshotsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traffic_monitor_snapshots_published_total",
		Help: "Total number of intensity snapshots published to Redis.",
	})
	intensityChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_monitor_intensity_changes_total",
		Help: "Number of roads whose intensity changed between cycles, by new intensity.",
	}, []string{"intensity"})
	roadsByIntensity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "traffic_monitor_roads",
		Help: "Roads per intensity in the latest snapshot.",
	}, []string{"intensity"})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "traffic_monitor_cycle_duration_seconds",
		Help:    "Duration of a full snapshot cycle.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	})
)

type monitor struct {
	roads *services.RoadService
	cache *services.CacheService
	last  map[uint]services.Intensity
}

func newMonitor(roads *services.RoadService, cache *services.CacheService) *monitor {
	return &monitor{roads: roads, cache: cache, last: map[uint]services.Intensity{}}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	log.Printf("db connected")

	// Redis is required here, unlike in the api and collector.
	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	defer cache.Close()

	go serveHTTP(cfg.Monitor.MetricsAddr)

	m := newMonitor(services.NewRoadService(db.Gorm, services.NewThresholdService(db.Gorm)), cache)
	interval := time.Duration(cfg.Monitor.IntervalSec) * time.Second
	log.Printf("monitor running: interval=%s", interval)

	m.runCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runCycle(ctx)
		case <-ctx.Done():
			log.Printf("monitor shutting down")
			return
		}
	}
}

// runCycle takes one snapshot, publishes it and records which roads changed intensity.
func (m *monitor) runCycle(ctx context.Context) (services.Snapshot, error) {
	start := time.Now()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()

	snap, err := m.roads.Snapshot(ctx)
	if err != nil {
		cyclesFailed.Inc()
		log.Printf("snapshot failed: %v", err)
		return services.Snapshot{}, err
	}

	changed := m.track(snap)
	for bucket, n := range snap.Counts {
		roadsByIntensity.WithLabelValues(string(bucket)).Set(float64(n))
	}

	if err := m.cache.Set(ctx, services.SnapshotKey, snap, snapshotTTL); err != nil {
		cyclesFailed.Inc()
		log.Printf("store snapshot failed: %v", err)
		return snap, err
	}
	if err := m.cache.Publish(ctx, services.IntensityChannel, snap); err != nil {
		cyclesFailed.Inc()
		log.Printf("publish snapshot failed: %v", err)
		return snap, err
	}
	snapshotsPublished.Inc()

	log.Printf("snapshot cycle completed: %d roads, %d changed, low=%d medium=%d high=%d (%.2fs)",
		len(snap.Roads), changed,
		snap.Counts[services.IntensityLow], snap.Counts[services.IntensityMedium], snap.Counts[services.IntensityHigh],
		time.Since(start).Seconds())
	return snap, nil
}

// track remembers each road's bucket and returns how many differ from the previous cycle.
// A road seen for the first time does not count as a change.
func (m *monitor) track(snap services.Snapshot) int {
	changed := 0
	seen := make(map[uint]services.Intensity, len(snap.Roads))
	for _, r := range snap.Roads {
		seen[r.RoadID] = r.Intensity
		if prev, ok := m.last[r.RoadID]; ok && prev != r.Intensity {
			intensityChanges.WithLabelValues(string(r.Intensity)).Inc()
			changed++
		}
	}
	m.last = seen
	return changed
}

func serveHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("metrics server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("metrics server failed: %v", err)
	}
}
