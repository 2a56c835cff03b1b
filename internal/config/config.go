package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	AppEnv string
	Port   int

	// CyberSource Secure Acceptance
	CyberSourceSecretKey string
	// MIT owns the CyberSource profile; deployments without access to the
	// secret key run with verification disabled and rely on upstream
	// network controls instead.
	VerifySignature bool

	// Shared secret for the trips API (verified emails + notifications)
	MembershipSecretKey string
	TripsAPIBaseURL     string
	TripsAPITimeout     time.Duration

	// Verified-email lookup cache
	EmailCacheTTL time.Duration

	// Database
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDB       string

	// Optional: notification retry queue
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Optional: error tracking
	SentryDSN string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnvInt("PORT", 8080),

		CyberSourceSecretKey: getEnv("CYBERSOURCE_SECRET_KEY", ""),
		VerifySignature:      getEnvBool("VERIFY_CYBERSOURCE_SIGNATURE", true),

		MembershipSecretKey: getEnv("MEMBERSHIP_SECRET_KEY", ""),
		TripsAPIBaseURL:     getEnv("TRIPS_API_BASE_URL", "https://mitoc-trips.mit.edu"),
		TripsAPITimeout:     getEnvDuration("TRIPS_API_TIMEOUT", 10*time.Second),

		EmailCacheTTL: getEnvDuration("EMAIL_CACHE_TTL", 5*time.Minute),

		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGUser:     getEnv("PG_USER", "ws"),
		PGPassword: getEnv("PG_PASSWORD", "password"),
		PGDB:       getEnv("PG_DB", "geardb"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SentryDSN: getEnv("SENTRY_DSN", ""),
	}

	if cfg.MembershipSecretKey == "" {
		return nil, fmt.Errorf("MEMBERSHIP_SECRET_KEY is required")
	}
	if cfg.VerifySignature && cfg.CyberSourceSecretKey == "" {
		return nil, fmt.Errorf("CYBERSOURCE_SECRET_KEY is required unless VERIFY_CYBERSOURCE_SIGNATURE=false")
	}

	return cfg, nil
}

// RetryQueueEnabled reports whether failed notifications should be queued
// for redelivery (requires redis).
func (c *Config) RetryQueueEnabled() bool {
	return c.RedisHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
