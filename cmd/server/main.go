package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/waymark-app/waymark/internal/account"
	"github.com/waymark-app/waymark/internal/cache/querycache"
	"github.com/waymark-app/waymark/internal/cache/redisstore"
	"github.com/waymark-app/waymark/internal/config"
	"github.com/waymark-app/waymark/internal/geoquery"
	"github.com/waymark-app/waymark/internal/httpapi"
	"github.com/waymark-app/waymark/internal/logger"
	"github.com/waymark-app/waymark/internal/observability"
	"github.com/waymark-app/waymark/internal/ratelimit"
	"github.com/waymark-app/waymark/internal/store"
	"github.com/waymark-app/waymark/internal/store/postgres"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "server",
	}, os.Stdout)

	log.Info().
		Str("addr", cfg.Addr).
		Str("version", Version).
		Bool("cache_enabled", cfg.Cache.Enabled).
		Msg("starting server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	observability.Register(reg)
	observability.ExposeBuildInfo(Version)

	// Redis is an accelerator, not a dependency: if it is unreachable the
	// cache stays cold and the rate limiter runs on its local fallback.
	var redisCli *redisstore.Client
	if cfg.Cache.Enabled || cfg.RateLimit.RedisEnabled {
		dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		cli, err := redisstore.New(dialCtx, cfg.RedisAddr)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).
				Msg("redis unavailable, running degraded")
		} else {
			redisCli = cli
			defer func() { _ = cli.Close() }()
		}
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	markers, err := postgres.Open(dbCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		return 1
	}
	defer func() { _ = markers.Close() }()

	if err := markers.CheckGeoSupport(ctx); err != nil {
		if errors.Is(err, store.ErrGeoSupportMissing) {
			log.Error().Msg("PostGIS extension missing, spatial queries will fail: run CREATE EXTENSION postgis")
		} else {
			log.Error().Err(err).Msg("spatial capability probe failed")
			return 1
		}
	}

	qc := querycache.New(redisCli, cfg.Cache.Enabled, cfg.Cache.OpTimeout, log)
	engine := geoquery.New(markers, qc, geoquery.Config{
		NearbyTTL:   cfg.Cache.NearbyTTL,
		ViewportTTL: cfg.Cache.ViewportTTL,
	}, log)

	var limiterRedis *redisstore.Client
	if cfg.RateLimit.RedisEnabled {
		limiterRedis = redisCli
	}
	limiter := ratelimit.New(limiterRedis, ratelimit.Config{
		RedisEnabled: cfg.RateLimit.RedisEnabled,
		MaxAttempts:  cfg.RateLimit.MaxAttempts,
		Window:       cfg.RateLimit.Window,
	}, log)

	accounts := account.NewService(markers.DB(), log)

	handlers := httpapi.NewHandlers(engine, limiter, accounts, log)
	router := httpapi.NewRouter(handlers, log)

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics, reg, log)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
			return 1
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server exited with error")
			return 1
		}
	}

	log.Info().Msg("server stopped")
	return 0
}

func startMetricsServer(ctx context.Context, cfg config.MetricsCfg, reg *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, observability.Handler(reg))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("path", cfg.Path).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server exited")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
