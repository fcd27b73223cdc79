/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	MediaRoot     string
	JWTSigningKey string
	MetricsBind   string
	InstanceID    string

	// Playlist engine tuning
	SettleDelay   time.Duration // wait after a carousel move before the start signal
	MaxDelay      time.Duration // upper bound for per-row inter-track delay
	HistoryEnable bool

	// Redis cache configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool

	// NATS event mirror configuration
	NATSURL     string
	NATSEnabled bool

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("SLIDECAST_ENV", "development"),
		HTTPBind:      getEnv("SLIDECAST_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("SLIDECAST_HTTP_PORT", 8080),
		DBBackend:     DatabaseBackend(getEnv("SLIDECAST_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:         getEnv("SLIDECAST_DB_DSN", ""),
		MediaRoot:     getEnv("SLIDECAST_MEDIA_ROOT", "./media"),
		JWTSigningKey: getEnv("SLIDECAST_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("SLIDECAST_METRICS_BIND", "127.0.0.1:9000"),
		InstanceID:    getEnv("SLIDECAST_INSTANCE_ID", ""),

		SettleDelay:   time.Duration(getEnvInt("SLIDECAST_SETTLE_DELAY_MS", 600)) * time.Millisecond,
		MaxDelay:      time.Duration(getEnvInt("SLIDECAST_MAX_DELAY_SECONDS", 45)) * time.Second,
		HistoryEnable: getEnvBool("SLIDECAST_HISTORY_ENABLED", true),

		RedisAddr:     getEnv("SLIDECAST_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("SLIDECAST_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("SLIDECAST_REDIS_DB", 0),
		CacheEnabled:  getEnvBool("SLIDECAST_CACHE_ENABLED", false),

		NATSURL:     getEnv("SLIDECAST_NATS_URL", "nats://localhost:4222"),
		NATSEnabled: getEnvBool("SLIDECAST_NATS_ENABLED", false),

		TracingEnabled:    getEnvBool("SLIDECAST_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SLIDECAST_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SLIDECAST_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SLIDECAST_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("SLIDECAST_JWT_SIGNING_KEY must be provided")
	}

	if strings.EqualFold(cfg.Environment, "production") && len(cfg.JWTSigningKey) < 32 {
		return nil, fmt.Errorf("SLIDECAST_JWT_SIGNING_KEY must be at least 32 bytes in production")
	}

	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 45 * time.Second
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
