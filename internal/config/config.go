// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/adminity/internal/session"
)

// Config holds all env configuration vars for Adminity.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	LogLevel    slog.Level

	// MetricsAddr is the listen address of the separate Prometheus listener,
	// kept off the console port so counters are not public. Default
	// 127.0.0.1:9091; METRICS_ADDR=off disables it.
	MetricsAddr string

	// Production is true when APP_ENV=production. Session cookies get the
	// Secure attribute only in production.
	Production bool

	// JWTSecret signs session tokens. When JWT_SECRET_KEY is unset it holds
	// session.FallbackSecret and JWTSecretIsFallback is true.
	JWTSecret           []byte
	JWTSecretIsFallback bool

	// SessionRevocation enables the Redis denylist checked on every request.
	// Default false; set SESSION_REVOCATION=true to enable.
	SessionRevocation bool

	// Rate limit policy for login attempts per email.
	// Defaults: max=10, window=10m, lockout=15m.
	RateLoginEmailMax     int
	RateLoginEmailWindow  time.Duration
	RateLoginEmailLockout time.Duration

	// TurnstileSecret enables captcha verification on login when set.
	// TurnstileSiteKey is the public key the login page renders the widget with.
	TurnstileSecret  string
	TurnstileSiteKey string

	// Google sign-in for administrators. All three or none.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// DocumentWebhookURL receives document processing jobs. Empty disables
	// POST /dashboard/documents/process.
	DocumentWebhookURL string
	WebhookQueueMax    int
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if required variables (DATABASE_URL, REDIS_URL) are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7865"
	}

	switch addr := os.Getenv("METRICS_ADDR"); {
	case addr == "":
		cfg.MetricsAddr = "127.0.0.1:9091"
	case strings.EqualFold(addr, "off"):
		cfg.MetricsAddr = ""
	default:
		cfg.MetricsAddr = addr
	}

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.Production = strings.EqualFold(os.Getenv("APP_ENV"), "production")

	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		cfg.JWTSecret = []byte(secret)
	} else {
		cfg.JWTSecret = []byte(session.FallbackSecret)
		cfg.JWTSecretIsFallback = true
	}

	cfg.SessionRevocation = envBool("SESSION_REVOCATION", false)

	// Rate limit: login by email. All three fields required -- if any are missing or invalid,
	// fall back to the default so a misconfigured env doesn't silently disable rate limiting.
	cfg.RateLoginEmailMax = envInt("RATE_LOGIN_EMAIL_MAX", 10)
	cfg.RateLoginEmailWindow = envDuration("RATE_LOGIN_EMAIL_WINDOW", 10*time.Minute)
	cfg.RateLoginEmailLockout = envDuration("RATE_LOGIN_EMAIL_LOCKOUT", 15*time.Minute)

	cfg.TurnstileSecret = os.Getenv("TURNSTILE_SECRET")
	cfg.TurnstileSiteKey = os.Getenv("TURNSTILE_SITE_KEY")
	if cfg.TurnstileSecret != "" && cfg.TurnstileSiteKey == "" {
		return nil, fmt.Errorf("TURNSTILE_SITE_KEY is required when TURNSTILE_SECRET is set")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleClientID != "" || cfg.GoogleClientSecret != "" || cfg.GoogleRedirectURL != "" {
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" || cfg.GoogleRedirectURL == "" {
			return nil, fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must be set together")
		}
		if cfg.Production && !strings.HasPrefix(cfg.GoogleRedirectURL, "https://") {
			return nil, fmt.Errorf("GOOGLE_REDIRECT_URL must start with https:// in production")
		}
	}

	cfg.DocumentWebhookURL = os.Getenv("DOCUMENT_WEBHOOK_URL")
	if cfg.DocumentWebhookURL != "" {
		u, err := url.Parse(cfg.DocumentWebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("DOCUMENT_WEBHOOK_URL must be an absolute http(s) URL")
		}
	}
	cfg.WebhookQueueMax = envInt("WEBHOOK_QUEUE_MAX", 1000)

	return cfg, nil
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envBool reads an env var with strconv.ParseBool, returning def if missing or unparseable.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}
