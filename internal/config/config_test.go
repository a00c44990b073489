package config

import (
	"testing"

	"github.com/MGallo-Code/adminity/internal/session"
)

// --- LoadConfig ---

func TestLoadConfig(t *testing.T) {
	// Sets the required vars and clears the optional ones a developer shell may export.
	setRequired := func(t *testing.T) {
		t.Helper()
		t.Setenv("DATABASE_URL", "postgres://localhost/adminity")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		for _, key := range []string{
			"APP_ENV", "JWT_SECRET_KEY", "SESSION_REVOCATION",
			"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL",
			"DOCUMENT_WEBHOOK_URL", "RATE_LOGIN_EMAIL_MAX",
			"TURNSTILE_SECRET", "TURNSTILE_SITE_KEY", "METRICS_ADDR",
		} {
			t.Setenv(key, "")
		}
	}

	t.Run("returns valid config with all required vars", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.DatabaseURL != "postgres://localhost/adminity" {
			t.Errorf("DatabaseURL: expected %q, got %q", "postgres://localhost/adminity", cfg.DatabaseURL)
		}
		if cfg.RedisURL != "redis://localhost:6379" {
			t.Errorf("RedisURL: expected %q, got %q", "redis://localhost:6379", cfg.RedisURL)
		}
	})

	t.Run("errors when DATABASE_URL is missing", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := LoadConfig()
		if err == nil {
			t.Fatal("expected error for missing DATABASE_URL, got nil")
		}
	})

	t.Run("errors when REDIS_URL is missing", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/adminity")
		t.Setenv("REDIS_URL", "")

		_, err := LoadConfig()
		if err == nil {
			t.Fatal("expected error for missing REDIS_URL, got nil")
		}
	})

	t.Run("defaults PORT to 7865", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != "7865" {
			t.Errorf("Port: expected %q, got %q", "7865", cfg.Port)
		}
	})

	t.Run("metrics listener defaults to loopback and can be disabled", func(t *testing.T) {
		setRequired(t)
		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.MetricsAddr != "127.0.0.1:9091" {
			t.Errorf("MetricsAddr: expected 127.0.0.1:9091, got %q", cfg.MetricsAddr)
		}

		t.Setenv("METRICS_ADDR", ":9100")
		if cfg, _ = LoadConfig(); cfg.MetricsAddr != ":9100" {
			t.Errorf("MetricsAddr: expected :9100, got %q", cfg.MetricsAddr)
		}

		t.Setenv("METRICS_ADDR", "off")
		if cfg, _ = LoadConfig(); cfg.MetricsAddr != "" {
			t.Errorf("MetricsAddr: expected disabled, got %q", cfg.MetricsAddr)
		}
	})

	t.Run("uses custom PORT when set", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "9090")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != "9090" {
			t.Errorf("Port: expected %q, got %q", "9090", cfg.Port)
		}
	})

	t.Run("missing JWT_SECRET_KEY falls back and is flagged", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if string(cfg.JWTSecret) != session.FallbackSecret {
			t.Errorf("JWTSecret: expected fallback, got %q", cfg.JWTSecret)
		}
		if !cfg.JWTSecretIsFallback {
			t.Error("JWTSecretIsFallback should be true")
		}
	})

	t.Run("JWT_SECRET_KEY is used when set", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWT_SECRET_KEY", "s3cret")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if string(cfg.JWTSecret) != "s3cret" || cfg.JWTSecretIsFallback {
			t.Errorf("expected configured secret, got %q (fallback=%v)", cfg.JWTSecret, cfg.JWTSecretIsFallback)
		}
	})

	t.Run("Production only for APP_ENV=production", func(t *testing.T) {
		setRequired(t)
		for val, want := range map[string]bool{"production": true, "Production": true, "development": false, "": false, "prod": false} {
			t.Setenv("APP_ENV", val)
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig failed for %q: %v", val, err)
			}
			if cfg.Production != want {
				t.Errorf("APP_ENV=%q: expected Production=%v", val, want)
			}
		}
	})

	t.Run("SessionRevocation defaults to false and parses bools", func(t *testing.T) {
		setRequired(t)
		for val, want := range map[string]bool{"": false, "true": true, "1": true, "false": false, "typo": false} {
			t.Setenv("SESSION_REVOCATION", val)
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig failed for %q: %v", val, err)
			}
			if cfg.SessionRevocation != want {
				t.Errorf("SESSION_REVOCATION=%q: expected %v", val, want)
			}
		}
	})

	t.Run("invalid rate limit falls back to default", func(t *testing.T) {
		setRequired(t)
		t.Setenv("RATE_LOGIN_EMAIL_MAX", "-3")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.RateLoginEmailMax != 10 {
			t.Errorf("RateLoginEmailMax: expected 10, got %d", cfg.RateLoginEmailMax)
		}
	})

	t.Run("partial Google config is rejected", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GOOGLE_CLIENT_ID", "client-id")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for partial Google config, got nil")
		}
	})

	t.Run("complete Google config enables sign-in", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GOOGLE_CLIENT_ID", "client-id")
		t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
		t.Setenv("GOOGLE_REDIRECT_URL", "http://localhost:7865/login")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if !cfg.GoogleEnabled() {
			t.Error("GoogleEnabled should be true")
		}
	})

	t.Run("plain http Google redirect is rejected in production", func(t *testing.T) {
		setRequired(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("GOOGLE_CLIENT_ID", "client-id")
		t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
		t.Setenv("GOOGLE_REDIRECT_URL", "http://admin.example.com/login")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for http redirect in production, got nil")
		}
	})

	t.Run("relative webhook URL is rejected", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DOCUMENT_WEBHOOK_URL", "/hooks/process")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for relative webhook URL, got nil")
		}
	})

	t.Run("captcha secret without site key is rejected", func(t *testing.T) {
		setRequired(t)
		t.Setenv("TURNSTILE_SECRET", "secret")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for TURNSTILE_SECRET without TURNSTILE_SITE_KEY, got nil")
		}
	})
}
