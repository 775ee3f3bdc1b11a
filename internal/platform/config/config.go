package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv keeps main lean.
type Server struct {
	Addr          string
	PostgresDSN   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWTSigningKey string
	JWTIssuer     string
}

// RedisConfig configures the optional product-metadata cache. An empty URL
// disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MetadataTTL  time.Duration
}

// KafkaConfig configures the notification publisher. Empty brokers fall back
// to the in-process log sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("PROVENANCE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("PROVENANCE_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}
	jwtIssuer := os.Getenv("PROVENANCE_JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "provenance-registry"
	}

	topic := os.Getenv("PROVENANCE_KAFKA_TOPIC")
	if topic == "" {
		topic = "provenance.custody-events"
	}

	return Server{
		Addr:        addr,
		PostgresDSN: os.Getenv("PROVENANCE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("PROVENANCE_REDIS_URL"),
			PoolSize:     envInt("PROVENANCE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PROVENANCE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("PROVENANCE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PROVENANCE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PROVENANCE_REDIS_WRITE_TIMEOUT", 3*time.Second),
			// Metadata is write-once, so entries only expire to bound memory.
			MetadataTTL: envDuration("PROVENANCE_REDIS_METADATA_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("PROVENANCE_KAFKA_BROKERS")),
			Topic:   topic,
		},
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     jwtIssuer,
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
