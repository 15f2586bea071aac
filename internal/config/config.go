// Package config loads process configuration from environment variables,
// in the teacher's getEnv/getIntEnv/getDurationEnv style.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for one of the exchange processes
// (cmd/exchange-api, cmd/exchange-worker, cmd/exchange-gateway). Every
// process loads the whole thing; each only reads the sections it needs.
type Config struct {
	Server        ServerConfig
	Gateway       GatewayConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Matching      MatchingConfig
}

// ServerConfig is the HTTP order-intake listener.
type ServerConfig struct {
	Port               string
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

// GatewayConfig is the WebSocket streaming listener.
type GatewayConfig struct {
	Port         string
	Host         string
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// RedisConfig carries the broker connection, pool and retry knobs, trimmed
// from the teacher's much larger RedisConfig. The cmd binaries pass URL,
// Password, DB, PoolSize and MinIdleConns to broker.RedisBroker;
// MaxRetries, MinRetryBackoff and MaxRetryBackoff are loaded but not passed
// to the broker.
type RedisConfig struct {
	URL             string
	Password        string
	DB              int
	PoolSize        int
	MinIdleConns    int
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
}

// ObservabilityConfig configures structured logging and the metrics server.
type ObservabilityConfig struct {
	ServiceName    string
	LogLevel       string
	LogFormat      string
	MetricsPort    int
	TracingEnabled bool
	JaegerEndpoint string
}

// MatchingConfig names the broker topics and the per-request deadline the
// core pipeline operates on.
type MatchingConfig struct {
	OrderQueue          string
	OrderbookQueryQueue string
	ResponseTopicPrefix string
	MarketUpdatesTopic  string
	ResponseDeadline    time.Duration
	WorkerRetryDelay    time.Duration
}

// Load reads configuration from the environment, applying the reference
// defaults named in spec.md §6 where an env var is unset.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			Host:               getEnv("HOST", "0.0.0.0"),
			ReadTimeout:        getDurationEnv("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:        getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
			CORSAllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Gateway: GatewayConfig{
			Port:         getEnv("GATEWAY_PORT", "8081"),
			Host:         getEnv("GATEWAY_HOST", "0.0.0.0"),
			WriteTimeout: getDurationEnv("GATEWAY_WRITE_TIMEOUT", 10*time.Second),
			PingInterval: getDurationEnv("GATEWAY_PING_INTERVAL", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getIntEnv("REDIS_DB", 0),
			PoolSize:        getIntEnv("REDIS_POOL_SIZE", 20),
			MinIdleConns:    getIntEnv("REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:      getIntEnv("REDIS_MAX_RETRIES", 3),
			MinRetryBackoff: getDurationEnv("REDIS_MIN_RETRY_BACKOFF", 8*time.Millisecond),
			MaxRetryBackoff: getDurationEnv("REDIS_MAX_RETRY_BACKOFF", 512*time.Millisecond),
		},
		Observability: ObservabilityConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "exchange"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsPort:    getIntEnv("METRICS_PORT", 9090),
			TracingEnabled: getBoolEnv("TRACING_ENABLED", false),
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
		Matching: MatchingConfig{
			OrderQueue:          getEnv("ORDER_QUEUE", "order"),
			OrderbookQueryQueue: getEnv("ORDERBOOK_QUERY_QUEUE", "orderbook_query"),
			ResponseTopicPrefix: getEnv("RESPONSE_TOPIC_PREFIX", "response:"),
			MarketUpdatesTopic:  getEnv("MARKET_UPDATES_TOPIC", "market_updates"),
			ResponseDeadline:    getDurationEnv("RESPONSE_DEADLINE", 5*time.Second),
			WorkerRetryDelay:    getDurationEnv("WORKER_RETRY_DELAY", 5*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Matching.OrderQueue == "" {
		return fmt.Errorf("ORDER_QUEUE is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
