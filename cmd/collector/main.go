package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"traffic-telemetry-api/config"
	"traffic-telemetry-api/database"
	"traffic-telemetry-api/services"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// PlatePayload is published by ALPR sensors on traffic/plates/<sensor uuid>.
type PlatePayload struct {
	SensorUUID   string `json:"sensor_uuid,omitempty"`
	LicensePlate string `json:"license_plate"`
	RoadSegment  uint   `json:"road_segment"`
	Timestamp    string `json:"timestamp"`
}

// SpeedPayload is published by speed probes on traffic/speed/<road id>.
type SpeedPayload struct {
	RoadID uint             `json:"road_id,omitempty"`
	Value  *decimal.Decimal `json:"value"`
}

type plateEvent struct {
	ID           uint      `json:"id"`
	RoadSegment  uint      `json:"road_segment"`
	LicensePlate string    `json:"license_plate"`
	Sensor       string    `json:"sensor"`
	Timestamp    time.Time `json:"timestamp"`
}

var (
	msgsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_collector_messages_received_total",
		Help: "Total number of MQTT messages received by collector.",
	}, []string{"kind"})
	msgsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_collector_messages_stored_total",
		Help: "Total number of messages successfully stored.",
	}, []string{"kind"})
	msgsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_collector_messages_failed_total",
		Help: "Total number of messages rejected or failed to store.",
	}, []string{"kind"})
)

type collector struct {
	plateReads *services.PlateReadService
	reads      *services.ReadService
	cache      *services.CacheService
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

	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("redis unavailable, live events disabled: %v", err)
	}
	defer cache.Close()

	thresholds := services.NewThresholdService(db.Gorm)
	roads := services.NewRoadService(db.Gorm, thresholds)
	c := &collector{
		plateReads: services.NewPlateReadService(db.Gorm, services.NewSensorService(db.Gorm), roads),
		reads:      services.NewReadService(db.Gorm, roads),
		cache:      cache,
	}

	go serveHTTP(cfg.MQTT.MetricsAddr)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.URL)
	opts.SetClientID("traffic-collector-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnect = func(client mqtt.Client) {
		filters := map[string]byte{cfg.MQTT.PlatesTopic: 1, cfg.MQTT.SpeedTopic: 1}
		token := client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
			c.route(ctx, cfg.MQTT, msg.Topic(), msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqtt subscribe error: %v", token.Error())
			return
		}
		log.Printf("collector subscribed to plates=%s speed=%s", cfg.MQTT.PlatesTopic, cfg.MQTT.SpeedTopic)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		log.Fatalf("mqtt connection failed: %v", token.Error())
	}

	log.Printf("collector running, mqtt=%s metrics=%s", cfg.MQTT.URL, cfg.MQTT.MetricsAddr)

	<-ctx.Done()
	log.Printf("collector shutting down")
	client.Disconnect(250)
}

func serveHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
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

func (c *collector) route(ctx context.Context, cfg config.MQTTConfig, topic string, payload []byte) {
	switch {
	case topicMatches(cfg.PlatesTopic, topic):
		c.processPlate(ctx, topic, payload)
	case topicMatches(cfg.SpeedTopic, topic):
		c.processSpeed(ctx, topic, payload)
	default:
		log.Printf("ignoring message on unexpected topic %s", topic)
	}
}

func (c *collector) processPlate(ctx context.Context, topic string, raw []byte) {
	msgsReceived.WithLabelValues("plate").Inc()

	in, err := plateInput(topic, raw)
	if err != nil {
		msgsFailed.WithLabelValues("plate").Inc()
		log.Printf("invalid plate payload on %s: %v", topic, err)
		return
	}

	stored, err := c.plateReads.Ingest(ctx, []services.PlateReadInput{in})
	if err != nil {
		msgsFailed.WithLabelValues("plate").Inc()
		var batch *services.BatchValidationError
		if errors.As(err, &batch) && batch.Items[0] != nil {
			err = batch.Items[0]
		}
		log.Printf("plate read rejected on %s: %v", topic, err)
		return
	}

	msgsStored.WithLabelValues("plate").Inc()
	for _, pr := range stored {
		c.cache.PublishLive(ctx, "plate_read", plateEvent{
			ID:           pr.ID,
			RoadSegment:  pr.RoadSegmentID,
			LicensePlate: pr.Car.LicensePlate,
			Sensor:       pr.Sensor.UUID.String(),
			Timestamp:    pr.ReadAt,
		})
	}
}

func (c *collector) processSpeed(ctx context.Context, topic string, raw []byte) {
	msgsReceived.WithLabelValues("speed").Inc()

	in, err := speedInput(topic, raw)
	if err != nil {
		msgsFailed.WithLabelValues("speed").Inc()
		log.Printf("invalid speed payload on %s: %v", topic, err)
		return
	}

	r, err := c.reads.Create(ctx, in)
	if err != nil {
		msgsFailed.WithLabelValues("speed").Inc()
		log.Printf("speed read rejected on %s: %v", topic, err)
		return
	}

	msgsStored.WithLabelValues("speed").Inc()
	c.cache.PublishLive(ctx, "read", r)
}

// plateInput decodes a plate payload. The sensor defaults to the last topic level.
func plateInput(topic string, raw []byte) (services.PlateReadInput, error) {
	var p PlatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return services.PlateReadInput{}, err
	}
	if p.SensorUUID == "" {
		p.SensorUUID = path.Base(topic)
	}
	if p.Timestamp == "" {
		p.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	in := services.PlateReadInput{
		SensorUUID:   &p.SensorUUID,
		LicensePlate: &p.LicensePlate,
		Timestamp:    &p.Timestamp,
	}
	if p.RoadSegment != 0 {
		road := strconv.FormatUint(uint64(p.RoadSegment), 10)
		in.RoadSegment = &road
	}
	return in, nil
}

// speedInput decodes a speed payload. The road defaults to the last topic level.
func speedInput(topic string, raw []byte) (services.ReadInput, error) {
	var p SpeedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return services.ReadInput{}, err
	}
	if p.RoadID == 0 {
		id, err := strconv.ParseUint(path.Base(topic), 10, 64)
		if err != nil {
			return services.ReadInput{}, fmt.Errorf("no road_id in payload and topic %q does not end in one", topic)
		}
		p.RoadID = uint(id)
	}
	return services.ReadInput{RoadID: &p.RoadID, ReadValue: p.Value}, nil
}

// topicMatches reports whether topic matches an MQTT filter with + and # wildcards.
func topicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, level := range f {
		if level == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if level != "+" && level != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
