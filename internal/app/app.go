// Package app wires the storefront API server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/view"
	"github.com/xenking/storefront/internal/fakestore"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// source is a product source that can report its reachability.
type source interface {
	product.Source
	health.Pinger
}

// openSource builds the configured product source. The returned func
// releases its resources.
func openSource(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg SourceConfig) (source, func(), error) {
	switch cfg.Kind {
	case SourcePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Using postgres catalog mirror")
		return postgres.NewProductRepository(pool), pool.Close, nil
	default:
		client, err := fakestore.New(fakestore.Config{
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
			UserAgent: "storefront",
		}, m.TracerProvider(), m.MeterProvider())
		if err != nil {
			return nil, nil, errors.Wrap(err, "create fakestore client")
		}
		lg.Info("Using remote product API", zap.String("base_url", cfg.BaseURL))
		return client, func() {}, nil
	}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("source", cfg.Source.Kind))

	src, closeSource, err := openSource(ctx, lg, m, cfg.Source)
	if err != nil {
		return err
	}
	defer closeSource()

	healthSvc := health.New(health.Config{Interval: cfg.Health.Interval}, lg.Named("health"))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))
	healthSvc.Add(health.Liveness, "gc", time.Second, health.GCMaxPauseCheck(cfg.Health.MaxGCPause))
	if cfg.Health.ReadinessProbe {
		healthSvc.Add(health.Readiness, "source", 5*time.Second, health.PingCheck(src))
	}
	healthSvc.Start(ctx)
	defer healthSvc.Stop()

	sessions := session.NewStore(src,
		view.Config{FetchTimeout: cfg.View.FetchTimeout, FoldCategory: cfg.View.FoldCategory},
		session.Config{IdleTTL: cfg.Session.IdleTTL, MaxSessions: cfg.Session.MaxSessions},
		lg.Named("session"),
	)
	defer sessions.Close()
	sessions.StartJanitor(ctx, cfg.Session.JanitorInterval)

	h, err := newHTTPHandler(ctx, lg, m.TracerProvider(), m.MeterProvider(), cfg, src, sessions, healthSvc)
	if err != nil {
		return err
	}
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.View.FetchTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHTTPHandler mounts the health probes and the API on one mux behind the
// middleware chain.
func newHTTPHandler(
	ctx context.Context,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
	src product.Source,
	sessions *session.Store,
	healthSvc *health.Health,
) (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(handler.HandlerConfig{}, sessions, src).Register(mux)

	instrument, err := httpmiddleware.Instrument("storefront-api", tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create instrumentation")
	}

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(lg),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.SessionHeader, "X-Request-ID"},
			ExposeHeaders:    []string{handler.SessionHeader, "X-Request-ID"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: httpmiddleware.HeaderOrClientIP(handler.SessionHeader),
		}),
		instrument,
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	), nil
}
