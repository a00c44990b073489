package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/adminity/internal/auth"
	"github.com/MGallo-Code/adminity/internal/captcha"
	"github.com/MGallo-Code/adminity/internal/config"
	"github.com/MGallo-Code/adminity/internal/console"
	"github.com/MGallo-Code/adminity/internal/metrics"
	"github.com/MGallo-Code/adminity/internal/oauth"
	"github.com/MGallo-Code/adminity/internal/session"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/webhook"
	"github.com/MGallo-Code/adminity/migrations"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: cfg.LogLevel == slog.LevelDebug,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (ps, rdb) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	if err := ps.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared Redis client; limiter, denylist, change feed and queue share one pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// Sessions
	if cfg.JWTSecretIsFallback {
		slog.Warn("JWT_SECRET_KEY is not set; signing sessions with the built-in fallback secret, anyone who knows it can forge sessions")
	}
	codec, err := session.NewCodec(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to set up session codec: %w", err)
	}
	var storeOpts []session.StoreOption
	if cfg.SessionRevocation {
		storeOpts = append(storeOpts, session.WithDenylist(store.NewRedisDenylist(rdb)))
		slog.Info("session revocation enabled")
	}
	sessions := session.NewCookieStore(codec, cfg.Production, storeOpts...)

	ah := &auth.AuthHandler{
		Admins:   ps,
		Sessions: sessions,
		Limiter:  store.NewRedisRateLimiter(rdb),
		LoginRate: store.RateLimit{
			MaxAttempts: cfg.RateLoginEmailMax,
			Window:      cfg.RateLoginEmailWindow,
			LockoutTTL:  cfg.RateLoginEmailLockout,
		},
		Metrics: m,
	}
	if cfg.TurnstileSecret != "" {
		ah.Captcha = captcha.NewTurnstileVerifier(cfg.TurnstileSecret)
		ah.CaptchaSiteKey = cfg.TurnstileSiteKey
	}
	if cfg.GoogleEnabled() {
		google, err := oauth.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return fmt.Errorf("failed to set up google sign-in: %w", err)
		}
		ah.OAuthProviders = map[string]oauth.Provider{google.Name(): google}
	}

	ch := &console.Handler{
		Records: ps,
		Changes: store.NewChangeFeed(rdb),
		Checks: map[string]console.HealthCheck{
			"postgres": ps.CheckHealth,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}

	// Worker ctx outlives request handling; cancelled when run() returns.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if cfg.DocumentWebhookURL != "" {
		q := webhook.NewQueue(webhook.NewClient(cfg.DocumentWebhookURL), rdb, int64(cfg.WebhookQueueMax), m)
		go q.StartWorker(workerCtx)
		ch.Jobs = q
	} else {
		slog.Info("DOCUMENT_WEBHOOK_URL not set; document processing disabled")
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// No WriteTimeout: watch streams stay open; the Timeout middleware bounds everything else.
	server := &http.Server{
		Handler:           buildRouter(ah, ch, &auth.Gate{Sessions: sessions, Metrics: m}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("adminity listening", "addr", ln.Addr().String())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Prometheus gets its own listener so the console port never exposes it.
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			server.Close()
			return fmt.Errorf("metrics listen: %w", err)
		}
		metricsServer = &http.Server{
			Handler:           buildMetricsRouter(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("metrics listening", "addr", mln.Addr().String())
			if err := metricsServer.Serve(mln); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cancelWorker()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// The gate sits at the root so every routed request is classified before any handler runs.
func buildRouter(ah *auth.AuthHandler, ch *console.Handler, gate *auth.Gate) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(gate.Middleware)

	// Exempt from the gate
	r.Get("/healthz", ch.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get(auth.LoginPath, ah.LoginPage)
		r.Post(auth.LoginPath, ah.LoginSubmit)
		r.Post("/logout", ah.LogoutSubmit)

		ch.Routes(r)
	})

	// Long-lived SSE streams; outside the request timeout.
	ch.WatchRoutes(r)

	return r
}

// buildMetricsRouter serves the registry on the metrics listener.
func buildMetricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}
