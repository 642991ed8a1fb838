package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	CORS     CORSConfig
	MQTT     MQTTConfig
	Monitor  MonitorConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
}

// GetDSN returns the keyword/value connection string used by pgxpool.
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.MaxConns,
	)
}

// GetURL returns the same database as a URL, the form golang-migrate expects.
func (d DatabaseConfig) GetURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins string
}

type MQTTConfig struct {
	URL         string
	PlatesTopic string
	SpeedTopic  string
	MetricsAddr string
}

type MonitorConfig struct {
	IntervalSec int
	MetricsAddr string
}

func LoadConfig() (*Config, error) {
	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	dbMaxConns, err := getIntEnv("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	monitorInterval, err := getIntEnv("MONITOR_INTERVAL_SEC", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL_SEC: %w", err)
	}
	if monitorInterval <= 0 {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL_SEC: must be positive, got %d", monitorInterval)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "traffic"),
			Password: getEnv("DB_PASSWORD", "traffic_dev_password"),
			Name:     getEnv("DB_NAME", "traffic"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
			ExpiryHours: jwtExpiry,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		MQTT: MQTTConfig{
			URL:         getEnv("MQTT_URL", "tcp://localhost:1883"),
			PlatesTopic: getEnv("MQTT_PLATES_TOPIC", "traffic/plates/+"),
			SpeedTopic:  getEnv("MQTT_SPEED_TOPIC", "traffic/speed/+"),
			MetricsAddr: getEnv("COLLECTOR_METRICS_ADDR", ":9101"),
		},
		Monitor: MonitorConfig{
			IntervalSec: monitorInterval,
			MetricsAddr: getEnv("MONITOR_METRICS_ADDR", ":9102"),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
