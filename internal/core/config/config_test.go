package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testSecretA = "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	testSecretB = "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func TestHMACSecrets(t *testing.T) {
	os.Unsetenv("OV_HMAC_SECRET")
	os.Unsetenv("OV_HMAC_SECRET_1")
	os.Unsetenv("OV_HMAC_SECRET_2")

	t.Run("single secret", func(t *testing.T) {
		t.Setenv("OV_HMAC_SECRET", testSecretA)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v, want nil", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		t.Setenv("OV_HMAC_SECRET_1", testSecretA)
		t.Setenv("OV_HMAC_SECRET_2", testSecretB)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v, want nil", err)
		}
		if len(secrets) != 2 {
			t.Errorf("expected 2 secrets, got %d", len(secrets))
		}
	})

	t.Run("numbering stops at first gap", func(t *testing.T) {
		t.Setenv("OV_HMAC_SECRET_2", testSecretB)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v, want nil", err)
		}
		if len(secrets) != 0 {
			t.Errorf("expected 0 secrets, got %d", len(secrets))
		}
	})

	errCases := []struct {
		name string
		env  map[string]string
	}{
		{"invalid format", map[string]string{"OV_HMAC_SECRET": "invalid_format"}},
		{"short secret_id", map[string]string{"OV_HMAC_SECRET": "short:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"}},
		{"non-hex secret_id", map[string]string{"OV_HMAC_SECRET": "0123456789abcdefGHIJKLMNOPQRSTUV:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"}},
		{"duplicate numbered", map[string]string{"OV_HMAC_SECRET_1": testSecretA, "OV_HMAC_SECRET_2": testSecretA}},
		{"duplicate single and numbered", map[string]string{"OV_HMAC_SECRET": testSecretA, "OV_HMAC_SECRET_1": testSecretA}},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := HMACSecrets(); err == nil {
				t.Error("HMACSecrets() error = nil, want error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Server.Host != "0.0.0.0" {
			t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
		}
		if cfg.Server.Port != 50051 {
			t.Errorf("expected port 50051, got %d", cfg.Server.Port)
		}
		if cfg.Server.RequestTimeout != 30*time.Second {
			t.Errorf("expected timeout 30s, got %v", cfg.Server.RequestTimeout)
		}
		if cfg.Rules.Path != "./rules.yaml" || !cfg.Rules.Watch {
			t.Errorf("Rules = %+v", cfg.Rules)
		}
		if cfg.Rules.Debounce != 500*time.Millisecond {
			t.Errorf("expected debounce 500ms, got %v", cfg.Rules.Debounce)
		}
		if cfg.Review.Schedule != "@hourly" {
			t.Errorf("expected schedule @hourly, got %s", cfg.Review.Schedule)
		}
		if cfg.RateLimit.Rate != 10 || cfg.RateLimit.Burst != 20 {
			t.Errorf("RateLimit = %+v", cfg.RateLimit)
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("OV_SERVER_PORT", "9999")
		t.Setenv("OV_SERVER_HOST", "127.0.0.1")
		t.Setenv("OV_ENGINE_STRICT_MODE", "true")
		t.Setenv("OV_RATELIMIT_BURST", "5")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Server.Port != 9999 {
			t.Errorf("expected port 9999, got %d", cfg.Server.Port)
		}
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
		}
		if !cfg.Engine.StrictMode {
			t.Error("expected strict mode from environment")
		}
		if cfg.RateLimit.Burst != 5 {
			t.Errorf("expected burst 5, got %d", cfg.RateLimit.Burst)
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "overseer.yaml")
		content := "engine:\n  version: 2.1.0\nrules:\n  path: /etc/overseer/rules.yaml\n  watch: false\nreview:\n  schedule: \"*/5 * * * *\"\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Engine.Version != "2.1.0" {
			t.Errorf("expected version 2.1.0, got %s", cfg.Engine.Version)
		}
		if cfg.Rules.Path != "/etc/overseer/rules.yaml" || cfg.Rules.Watch {
			t.Errorf("Rules = %+v", cfg.Rules)
		}
		if cfg.Review.Schedule != "*/5 * * * *" {
			t.Errorf("expected schedule */5 * * * *, got %s", cfg.Review.Schedule)
		}
	})

	invalid := []struct {
		name string
		key  string
		val  string
	}{
		{"port out of range", "OV_SERVER_PORT", "70000"},
		{"negative max_connections", "OV_SERVER_MAX_CONNECTIONS", "-1"},
		{"non-semver engine version", "OV_ENGINE_VERSION", "latest"},
		{"bad review schedule", "OV_REVIEW_SCHEDULE", "every tuesday"},
		{"zero burst with rate", "OV_RATELIMIT_BURST", "0"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadConfig(""); err == nil {
				t.Errorf("LoadConfig() error = nil, want error for %s=%s", tt.key, tt.val)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("LoadConfig() error = nil, want error")
		}
	})
}

func TestValidate_DisabledFeatures(t *testing.T) {
	cfg := Default()
	cfg.Review.Schedule = ""
	cfg.RateLimit = RateLimitConfig{}
	cfg.Metrics.Addr = ""
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestParseHMACSecretWithID(t *testing.T) {
	t.Run("valid format", func(t *testing.T) {
		secretID, secret, err := ParseHMACSecretWithID(testSecretA)
		if err != nil {
			t.Fatalf("ParseHMACSecretWithID() error = %v, want nil", err)
		}
		if secretID != "0123456789abcdef0123456789abcdef" {
			t.Errorf("unexpected secret_id: %s", secretID)
		}
		if len(secret) < 32 {
			t.Errorf("secret too short: %d bytes", len(secret))
		}
	})

	bad := map[string]string{
		"missing colon":  "0123456789abcdef0123456789abcdef",
		"short id":       "tooshort:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w",
		"invalid base64": "0123456789abcdef0123456789abcdef:not-valid-base64!!!",
		"short secret":   "0123456789abcdef0123456789abcdef:c2hvcnQ=",
	}
	for name, val := range bad {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseHMACSecretWithID(val); err == nil {
				t.Error("ParseHMACSecretWithID() error = nil, want error")
			}
		})
	}
}
