// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production overrides via
// environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Gateway  Gateway
	OTP      OTP
	Email    Email
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Postgres configures the relational store. Empty URL means in-memory stores.
type Postgres struct {
	URL string
}

// Redis configures the OTP session store. Empty URL means in-memory store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit event publisher. Empty brokers disables Kafka
// publishing (events still reach the local audit store).
type Kafka struct {
	Brokers []string
	Topic   string
}

// Gateway holds the payment gateway credentials. The secret signs the
// order|payment HMAC that payment verification recomputes.
type Gateway struct {
	KeyID  string
	Secret string
}

// OTP controls authority OTP issuance pacing.
type OTP struct {
	// ResendCooldown is the minimum gap between OTP requests for one
	// verification. Observed authority limits sit between 30s and 600s.
	ResendCooldown time.Duration
	// SessionTTL bounds how long an authority session stays usable.
	SessionTTL time.Duration
	// AuthorityTimeout bounds a single authority round-trip.
	AuthorityTimeout time.Duration
}

// Email configures verdict notifications.
type Email struct {
	From string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("PEHCHAN_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_AUDIT_TOPIC", "pehchan.audit"),
		},
		Gateway: Gateway{
			KeyID:  os.Getenv("GATEWAY_KEY_ID"),
			Secret: os.Getenv("GATEWAY_SECRET"),
		},
		OTP: OTP{
			ResendCooldown:   envDuration("OTP_RESEND_COOLDOWN", 60*time.Second),
			SessionTTL:       envDuration("OTP_SESSION_TTL", 10*time.Minute),
			AuthorityTimeout: envDuration("AUTHORITY_TIMEOUT", 15*time.Second),
		},
		Email: Email{
			From: envOr("EMAIL_FROM", "no-reply@pehchan.example"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
