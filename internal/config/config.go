package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Sync      SyncConfig
	Retention RetentionConfig
	Analytics AnalyticsConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SyncConfig struct {
	Transport       string // http, kafka or offline
	EndpointURL     string
	KafkaBrokers    []string
	KafkaTopic      string
	DeliveryTimeout time.Duration
	MaxAttempts     int
	Interval        time.Duration
	MaxBackoff      time.Duration
}

type RetentionConfig struct {
	Days     int
	Schedule string
}

type AnalyticsConfig struct {
	BaselinesPath          string
	DiseaseDefinitionsPath string
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 20),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 100),
		},
		Sync: SyncConfig{
			Transport:       strings.ToLower(getEnv("SYNC_TRANSPORT", "offline")),
			EndpointURL:     getEnv("SYNC_ENDPOINT_URL", ""),
			KafkaBrokers:    getEnvList("SYNC_KAFKA_BROKERS", nil),
			KafkaTopic:      getEnv("SYNC_KAFKA_TOPIC", "surveillance.reports"),
			DeliveryTimeout: getEnvDuration("SYNC_DELIVERY_TIMEOUT", 10*time.Second),
			MaxAttempts:     getEnvInt("SYNC_MAX_ATTEMPTS", 5),
			Interval:        getEnvDuration("SYNC_INTERVAL", time.Minute),
			MaxBackoff:      getEnvDuration("SYNC_MAX_BACKOFF", 30*time.Minute),
		},
		Retention: RetentionConfig{
			Days:     getEnvInt("RETENTION_DAYS", 30),
			Schedule: getEnv("RETENTION_SCHEDULE", "@hourly"),
		},
		Analytics: AnalyticsConfig{
			BaselinesPath:          getEnv("BASELINES_PATH", ""),
			DiseaseDefinitionsPath: getEnv("DISEASE_DEFINITIONS_PATH", ""),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/surveillance.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 request per second")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	switch c.Sync.Transport {
	case "offline":
	case "http":
		if c.Sync.EndpointURL == "" {
			return fmt.Errorf("SYNC_ENDPOINT_URL is required for the http transport")
		}
	case "kafka":
		if len(c.Sync.KafkaBrokers) == 0 {
			return fmt.Errorf("SYNC_KAFKA_BROKERS is required for the kafka transport")
		}
	default:
		return fmt.Errorf("invalid sync transport: %s", c.Sync.Transport)
	}

	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync max attempts must be at least 1")
	}
	if c.Sync.DeliveryTimeout <= 0 {
		return fmt.Errorf("sync delivery timeout must be positive")
	}
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("sync interval must be at least 1 second")
	}
	if c.Sync.MaxBackoff < c.Sync.Interval {
		return fmt.Errorf("sync max backoff must not be shorter than the sync interval")
	}

	if c.Retention.Days < 1 {
		return fmt.Errorf("retention must be at least 1 day")
	}
	if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", c.Retention.Schedule, err)
	}

	return nil
}

func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Retention.Days) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
