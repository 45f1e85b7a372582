package main

import (
	"context"
	"facilitywatch/internal/api"
	"facilitywatch/internal/cache"
	"facilitywatch/internal/config"
	"facilitywatch/internal/facility"
	"facilitywatch/internal/logger"
	"facilitywatch/internal/models"
	"facilitywatch/internal/observability"
	"facilitywatch/internal/provider"
	"facilitywatch/internal/ratelimit"
	"facilitywatch/internal/storage"
	"facilitywatch/internal/version"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	configFile     = flag.String("config", "", "Path to configuration file")
	generateConfig = flag.String("generate-config", "", "Write an example configuration file to this path and exit")
	showVersion    = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	if *generateConfig != "" {
		if err := config.SaveExample(*generateConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *generateConfig)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err, "type", cfg.Storage.Type)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	facilities, closeProvider, err := initializeProvider(cfg)
	if err != nil {
		slog.Error("Failed to initialize facility provider", "error", err, "type", cfg.Provider.Type)
		os.Exit(1)
	}
	defer closeProvider()

	facilityService := facility.NewService(facilities, activeStorage, cfg.Alerts.MaxAlertsPerUser)

	handlerOpts := []api.HandlerOption{api.WithStorage(activeStorage)}
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Initialize admission control if enabled
	if cfg.Security.RateLimit.Enabled {
		limiters, closeLimiters, err := initializeLimiters(cfg.Security.RateLimit, cfg.Metrics.Enabled)
		if err != nil {
			slog.Error("Failed to initialize rate limiters", "error", err)
			os.Exit(1)
		}
		defer closeLimiters()

		handlerOpts = append(handlerOpts, api.WithLimiters(limiters))
		routeOpts = append(routeOpts, api.WithRateLimiters(
			limiters[models.PolicyRead],
			limiters[models.PolicyWrite],
			cfg.Security.RateLimit.TrustForwardedFor,
		))
	}

	handlers := api.NewHandlers(facilityService, handlerOpts...)
	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting server", "addr", server.Addr, "tls", cfg.Server.TLSEnabled)

		var err error
		if cfg.Server.TLSEnabled {
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Alerts.Enabled {
		checker := facility.NewAlertChecker(facilities, activeStorage, facility.NewLogNotifier(log), cfg.Alerts.Cooldown)
		go checker.Run(ctx, cfg.Alerts.CheckInterval)
	}

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeProvider builds the upstream facility provider, wrapped in the
// response cache when caching is enabled. The returned func releases the cache.
func initializeProvider(cfg *models.Config) (provider.Provider, func(), error) {
	upstream, err := provider.New(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Cache.Enabled {
		return upstream, func() {}, nil
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	closeCache := func() {
		if err := c.Close(); err != nil {
			slog.Error("Failed to close cache", "error", err)
		}
	}
	return provider.NewCachedProvider(upstream, c, cfg.Cache.TTL, cfg.Cache.StaleTTL), closeCache, nil
}

// initializeLimiters builds one limiter per configured policy. With metrics
// enabled each limiter reports its decisions and tracked entries.
func initializeLimiters(cfg models.RateLimitConfig, instrument bool) (map[string]ratelimit.Limiter, func(), error) {
	set, err := ratelimit.NewSet(cfg)
	if err != nil {
		return nil, nil, err
	}

	limiters := make(map[string]ratelimit.Limiter, len(set.Names()))
	for _, name := range set.Names() {
		l, _ := set.Get(name)
		if !instrument {
			limiters[name] = l
			continue
		}
		instrumented, err := observability.NewInstrumentedLimiter(l, name)
		if err != nil {
			closeAll(limiters)
			set.Close()
			return nil, nil, fmt.Errorf("rate limit policy %s: %w", name, err)
		}
		limiters[name] = instrumented
	}

	for _, name := range set.Names() {
		p := cfg.Policies[name]
		slog.Info("Rate limit policy active", "policy", name, "max_requests", p.MaxRequests, "window", p.Window)
	}

	return limiters, func() { closeAll(limiters) }, nil
}

func closeAll(limiters map[string]ratelimit.Limiter) {
	for _, l := range limiters {
		l.Close()
	}
}
