// Package config provides configuration management for overseer services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Rules     RulesConfig
	Database  DatabaseConfig
	Metrics   MetricsConfig
	Review    ReviewConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds configuration for the gRPC governance API.
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
}

// EngineConfig holds rules engine options.
type EngineConfig struct {
	Version    string // semver used for rule minVersion gating; empty disables
	StrictMode bool   // exclude deprecated rules
}

// RulesConfig locates the rule-set file and controls hot reload.
type RulesConfig struct {
	Path     string
	Watch    bool
	Debounce time.Duration
}

// DatabaseConfig holds the storage connection.
type DatabaseConfig struct {
	URL string // sqlite://path or postgres://...
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string
}

// ReviewConfig schedules the periodic rule-set dependency review.
// Empty schedule disables it.
type ReviewConfig struct {
	Schedule string
}

// RateLimitConfig sets the per-scope token bucket. Rate <= 0 disables
// limiting.
type RateLimitConfig struct {
	Rate  float64 // tokens per second
	Burst int
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			MaxConnections: 1000,
			RequestTimeout: 30 * time.Second,
		},
		Engine: EngineConfig{},
		Rules: RulesConfig{
			Path:     "./rules.yaml",
			Watch:    true,
			Debounce: 500 * time.Millisecond,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Review:  ReviewConfig{Schedule: "@hourly"},
		RateLimit: RateLimitConfig{
			Rate:  10,
			Burst: 20,
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports OV_HMAC_SECRET (single) and OV_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check OV_HMAC_SECRET and OV_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("OV_HMAC_SECRET"); val != "" {
		if err := add("OV_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("OV_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
