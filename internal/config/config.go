// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type CacheCfg struct {
	Enabled     bool
	NearbyTTL   time.Duration
	ViewportTTL time.Duration
	OpTimeout   time.Duration
}

type RateLimitCfg struct {
	RedisEnabled bool
	MaxAttempts  int
	Window       time.Duration
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr        string
	LogLevel    string
	DatabaseURL string
	RedisAddr   string
	Cache       CacheCfg
	RateLimit   RateLimitCfg
	Metrics     MetricsCfg
}

func FromEnv() Config {
	nearbyTTL := getduration("NEARBY_CACHE_TTL", 12*time.Second)
	viewportTTL := getduration("VIEWPORT_CACHE_TTL", 10*time.Second)
	if nearbyTTL < time.Second {
		nearbyTTL = time.Second
	}
	if viewportTTL < time.Second {
		viewportTTL = time.Second
	}

	maxAttempts := getint("REGISTER_RATE_LIMIT_MAX_ATTEMPTS", 5)
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	window := getduration("REGISTER_RATE_LIMIT_WINDOW", 600*time.Second)
	if window < time.Second {
		window = time.Second
	}

	return Config{
		Addr:        getenv("ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		DatabaseURL: getenv("DATABASE_URL", "postgres://localhost:5432/waymark?sslmode=disable"),
		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		Cache: CacheCfg{
			Enabled:     getbool("MARKER_CACHE_ENABLED", true),
			NearbyTTL:   nearbyTTL,
			ViewportTTL: viewportTTL,
			OpTimeout:   getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		RateLimit: RateLimitCfg{
			RedisEnabled: getbool("REGISTER_RATE_LIMIT_REDIS_ENABLED", true),
			MaxAttempts:  maxAttempts,
			Window:       window,
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
