package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"traffic-telemetry-api/config"

	"github.com/redis/go-redis/v9"
)

const (
	LiveChannel      = "traffic:live"
	IntensityChannel = "traffic:intensity"
	SnapshotKey      = "traffic:intensity:latest"
)

// LiveEvent is published on LiveChannel whenever a read or plate read is stored.
type LiveEvent struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

func NewLiveEvent(kind string, data interface{}) LiveEvent {
	return LiveEvent{Type: kind, At: time.Now().UTC(), Data: data}
}

// CacheService wraps redis for pub/sub fan-out and the last intensity snapshot.
// A nil client turns every call into a no-op so the API keeps serving without redis.
type CacheService struct {
	client *redis.Client
}

func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var lastErr error
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client}, nil
		}
		log.Printf("Redis ping attempt %d/10 failed: %v", i+1, lastErr)
		time.Sleep(2 * time.Second)
	}

	_ = client.Close()
	return &CacheService{client: nil}, fmt.Errorf("redis ping failed after 10 attempts: %w", lastErr)
}

// NewCacheServiceFromClient wraps an existing client, nil allowed.
func NewCacheServiceFromClient(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

func (s *CacheService) Available() bool {
	return s != nil && s.client != nil
}

// Get decodes key into dest. found is false when the key is absent.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Available() {
		return false, nil
	}
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(val), dest)
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message interface{}) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// PublishLive publishes without failing the caller; errors are logged.
func (s *CacheService) PublishLive(ctx context.Context, kind string, data interface{}) {
	if err := s.Publish(ctx, LiveChannel, NewLiveEvent(kind, data)); err != nil {
		log.Printf("publish %s event: %v", kind, err)
	}
}

func (s *CacheService) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if !s.Available() {
		return nil
	}
	return s.client.Subscribe(ctx, channels...)
}

func (s *CacheService) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}
