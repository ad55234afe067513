package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// secretKeys may never appear in a config file.
var secretKeys = []string{"hmac_secret", "server.hmac_secret", "database.password"}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller after loading.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	// Bind environment variables with OV_ prefix
	v.SetEnvPrefix("OV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MaxConnections: v.GetInt("server.max_connections"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Engine: EngineConfig{
			Version:    v.GetString("engine.version"),
			StrictMode: v.GetBool("engine.strict_mode"),
		},
		Rules: RulesConfig{
			Path:     v.GetString("rules.path"),
			Watch:    v.GetBool("rules.watch"),
			Debounce: v.GetDuration("rules.debounce"),
		},
		Database:  DatabaseConfig{URL: v.GetString("database.url")},
		Metrics:   MetricsConfig{Addr: v.GetString("metrics.addr")},
		Review:    ReviewConfig{Schedule: v.GetString("review.schedule")},
		RateLimit: RateLimitConfig{Rate: v.GetFloat64("ratelimit.rate"), Burst: v.GetInt("ratelimit.burst")},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("engine.version", d.Engine.Version)
	v.SetDefault("engine.strict_mode", d.Engine.StrictMode)
	v.SetDefault("rules.path", d.Rules.Path)
	v.SetDefault("rules.watch", d.Rules.Watch)
	v.SetDefault("rules.debounce", d.Rules.Debounce.String())
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("review.schedule", d.Review.Schedule)
	v.SetDefault("ratelimit.rate", d.RateLimit.Rate)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
}

// Validate checks ranges and formats. Called by LoadConfig and again by
// commands after applying flag overrides.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Engine.Version != "" {
		if _, err := semver.NewVersion(cfg.Engine.Version); err != nil {
			return fmt.Errorf("engine.version %q is not a semantic version: %w", cfg.Engine.Version, err)
		}
	}
	if cfg.Rules.Debounce < 0 {
		return fmt.Errorf("rules.debounce must not be negative, got %v", cfg.Rules.Debounce)
	}
	if cfg.Review.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Review.Schedule); err != nil {
			return fmt.Errorf("review.schedule %q: %w", cfg.Review.Schedule, err)
		}
	}
	if cfg.RateLimit.Rate > 0 && cfg.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.burst must be positive when rate is set, got %d", cfg.RateLimit.Burst)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range secretKeys {
		if v.InConfig(key) {
			return fmt.Errorf("HMAC secrets not allowed in config files (use OV_HMAC_SECRET environment variable)")
		}
	}
	return nil
}
