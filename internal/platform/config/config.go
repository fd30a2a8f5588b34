package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	JWTSigningKey string
	// PostgresURL selects the postgres-backed document store when set;
	// empty means the in-process store (demo mode).
	PostgresURL string
	// DemoSeed loads the built-in directory seed data on startup.
	DemoSeed bool
	// PresenceSweepSpec is the cron spec for the session staleness sweep.
	PresenceSweepSpec string
	// PresenceTTL is how long a session stays online without a heartbeat.
	PresenceTTL time.Duration

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig configures the non-authoritative fallback cache.
// An empty URL disables the cache entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional notification event sink.
// No brokers means notifications stay store-only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("AUDITFLOW_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	sweepSpec := os.Getenv("PRESENCE_SWEEP_SPEC")
	if sweepSpec == "" {
		sweepSpec = "@every 1m"
	}

	presenceTTL := 5 * time.Minute
	if raw := os.Getenv("PRESENCE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			presenceTTL = d
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("KAFKA_NOTIFICATIONS_TOPIC")
	if topic == "" {
		topic = "auditflow.notifications"
	}

	return Server{
		Addr:              addr,
		JWTSigningKey:     jwtSigningKey,
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		DemoSeed:          os.Getenv("DEMO_SEED") == "true",
		PresenceSweepSpec: sweepSpec,
		PresenceTTL:       presenceTTL,
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}
