// Package config provides configuration management for the gem-flux server.
// It loads settings from environment variables with the GEMFLUX_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Transport names accepted by ServerConfig.Transport.
const (
	TransportStdio     = "stdio"
	TransportWebSocket = "websocket"
)

// Config holds all configuration settings for the server.
type Config struct {
	Server   ServerConfig
	Session  SessionConfig
	Pipeline PipelineConfig
	Solver   SolverConfig
	Data     DataConfig
}

// ServerConfig contains transport and process settings.
type ServerConfig struct {
	Transport   string // stdio or websocket (default: stdio)
	Addr        string // WebSocket listen address (default: 127.0.0.1:8765)
	MetricsAddr string // Prometheus listen address; empty disables (default: "")
	LogLevel    string // debug, info, warn, error (default: info)
}

// SessionConfig bounds a session. Zero limits mean unlimited.
type SessionConfig struct {
	MaxModels       int // Maximum stored models (default: 0)
	MaxMedia        int // Maximum stored media, predefined included (default: 0)
	IDRetries       int // Id synthesis attempts before a collision error (default: 10)
	MaxLineageDepth int // Parent links followed when looking for test conditions (default: 64)
}

// PipelineConfig contains build, gapfill and analysis defaults.
type PipelineConfig struct {
	StageTimeout    time.Duration // Per-stage collaborator timeout; 0 disables (default: 0)
	CorrectionMedia []string      // Correction battery media ids; empty uses the library's battery
	DefaultTemplate string        // Template used when a build names none (default: Core)
	DefaultUptake   float64       // Uptake substituted for unlimited bounds (default: 100)
	MinGrowth       float64       // Default gapfilling growth target (default: 0.01)
	FluxThreshold   float64       // Fluxes at or below this magnitude are dropped (default: 1e-6)
}

// SolverConfig contains the remote solver service settings.
type SolverConfig struct {
	URL                string        // Base URL (default: http://localhost:8090)
	Timeout            time.Duration // HTTP timeout per call (default: 10m)
	RequestsPerSecond  float64       // Outgoing rate limit (default: 5)
	Burst              int           // Rate limiter burst (default: 2)
	BreakerMaxFailures int           // Consecutive failures that open the circuit (default: 3)
	BreakerTimeout     time.Duration // Time the circuit stays open (default: 30s)
}

// DataConfig points at optional replacements for the embedded data.
type DataConfig struct {
	MediaFile   string // YAML media library (default: embedded)
	TemplateDir string // Directory of template YAML files (default: embedded)
	BiochemDSN  string // postgres:// URL; empty uses in-memory SQLite (default: "")
	BiochemDir  string // Directory with compounds.tsv and reactions.tsv (default: embedded)

	WatchTemplates bool // Reload TemplateDir when its files change (default: false)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults and validates the result. All environment variables use the
// GEMFLUX_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Transport:   getEnv("GEMFLUX_TRANSPORT", TransportStdio),
			Addr:        getEnv("GEMFLUX_ADDR", "127.0.0.1:8765"),
			MetricsAddr: getEnv("GEMFLUX_METRICS_ADDR", ""),
			LogLevel:    getEnv("GEMFLUX_LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			MaxModels:       getEnvInt("GEMFLUX_MAX_MODELS", 0),
			MaxMedia:        getEnvInt("GEMFLUX_MAX_MEDIA", 0),
			IDRetries:       getEnvInt("GEMFLUX_ID_RETRIES", 10),
			MaxLineageDepth: getEnvInt("GEMFLUX_MAX_LINEAGE_DEPTH", 64),
		},
		Pipeline: PipelineConfig{
			StageTimeout:    getEnvDuration("GEMFLUX_STAGE_TIMEOUT", 0),
			CorrectionMedia: getEnvList("GEMFLUX_CORRECTION_MEDIA"),
			DefaultTemplate: getEnv("GEMFLUX_DEFAULT_TEMPLATE", "Core"),
			DefaultUptake:   getEnvFloat("GEMFLUX_DEFAULT_UPTAKE", 100),
			MinGrowth:       getEnvFloat("GEMFLUX_MIN_GROWTH", 0.01),
			FluxThreshold:   getEnvFloat("GEMFLUX_FLUX_THRESHOLD", 1e-6),
		},
		Solver: SolverConfig{
			URL:                getEnv("GEMFLUX_SOLVER_URL", "http://localhost:8090"),
			Timeout:            getEnvDuration("GEMFLUX_SOLVER_TIMEOUT", 10*time.Minute),
			RequestsPerSecond:  getEnvFloat("GEMFLUX_SOLVER_RPS", 5),
			Burst:              getEnvInt("GEMFLUX_SOLVER_BURST", 2),
			BreakerMaxFailures: getEnvInt("GEMFLUX_SOLVER_BREAKER_FAILURES", 3),
			BreakerTimeout:     getEnvDuration("GEMFLUX_SOLVER_BREAKER_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			MediaFile:   getEnv("GEMFLUX_MEDIA_FILE", ""),
			TemplateDir: getEnv("GEMFLUX_TEMPLATE_DIR", ""),
			BiochemDSN:  getEnv("GEMFLUX_BIOCHEM_DSN", ""),
			BiochemDir:  getEnv("GEMFLUX_BIOCHEM_DIR", ""),

			WatchTemplates: getEnvBool("GEMFLUX_WATCH_TEMPLATES", false),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportWebSocket:
	default:
		return fmt.Errorf("config: unknown transport %q (expected %s or %s)",
			c.Server.Transport, TransportStdio, TransportWebSocket)
	}
	if c.Session.MaxModels < 0 || c.Session.MaxMedia < 0 {
		return fmt.Errorf("config: session limits must not be negative")
	}
	if c.Solver.BreakerMaxFailures < 0 {
		return fmt.Errorf("config: GEMFLUX_SOLVER_BREAKER_FAILURES must not be negative")
	}
	if c.Session.IDRetries < 1 {
		return fmt.Errorf("config: GEMFLUX_ID_RETRIES must be at least 1")
	}
	if c.Session.MaxLineageDepth < 1 {
		return fmt.Errorf("config: GEMFLUX_MAX_LINEAGE_DEPTH must be at least 1")
	}
	if c.Pipeline.StageTimeout < 0 {
		return fmt.Errorf("config: GEMFLUX_STAGE_TIMEOUT must not be negative")
	}
	if c.Pipeline.DefaultUptake <= 0 {
		return fmt.Errorf("config: GEMFLUX_DEFAULT_UPTAKE must be positive")
	}
	if c.Data.WatchTemplates && c.Data.TemplateDir == "" {
		return fmt.Errorf("config: GEMFLUX_WATCH_TEMPLATES requires GEMFLUX_TEMPLATE_DIR")
	}
	if c.Pipeline.FluxThreshold < 0 {
		return fmt.Errorf("config: GEMFLUX_FLUX_THRESHOLD must not be negative")
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration ("90s", "10m") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean ("true", "1", "false", ...) or returns a
// default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
