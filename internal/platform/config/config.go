// Package config reads process configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the full runtime configuration of the lifecycle service.
type Server struct {
	Addr        string
	DatabaseURL string
	AdminToken  string

	Redis RedisConfig
	Kafka KafkaConfig

	// PendingReviewTTL bounds how long a paused start waits for a graduate
	// decision before the review token lapses.
	PendingReviewTTL time.Duration

	// NotifyWorkers caps concurrent notification sends when a cycle opens.
	NotifyWorkers int
}

// RedisConfig captures the optional Redis connection settings. An empty URL
// means Redis is not configured and the in-memory pending store is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures the optional audit event stream settings. Empty
// brokers disable the Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables. All keys carry
// the EDUCAID_ prefix.
func FromEnv() Server {
	addr := os.Getenv("EDUCAID_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminToken := os.Getenv("EDUCAID_ADMIN_TOKEN")
	if adminToken == "" {
		// Development default, must be overridden in production.
		adminToken = "dev-admin-token"
	}

	topic := os.Getenv("EDUCAID_KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "educaid.distribution.audit"
	}

	return Server{
		Addr:        addr,
		DatabaseURL: os.Getenv("EDUCAID_DATABASE_URL"),
		AdminToken:  adminToken,
		Redis: RedisConfig{
			URL:          os.Getenv("EDUCAID_REDIS_URL"),
			PoolSize:     envInt("EDUCAID_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("EDUCAID_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("EDUCAID_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("EDUCAID_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("EDUCAID_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("EDUCAID_KAFKA_BROKERS")),
			Topic:   topic,
		},
		PendingReviewTTL: envDuration("EDUCAID_PENDING_REVIEW_TTL", 30*time.Minute),
		NotifyWorkers:    envInt("EDUCAID_NOTIFY_WORKERS", 8),
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
