// Package main is the entry point for the recommendation API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/euskotrips/euskotrips/internal/api"
	"github.com/euskotrips/euskotrips/internal/config"
	"github.com/euskotrips/euskotrips/internal/favorites"
	"github.com/euskotrips/euskotrips/internal/health"
	"github.com/euskotrips/euskotrips/internal/index"
	"github.com/euskotrips/euskotrips/internal/middleware"
	"github.com/euskotrips/euskotrips/internal/ranking"
	"github.com/euskotrips/euskotrips/internal/tracing"
)

// shutdownTimeout bounds the drain of in-flight requests on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	if *help {
		fmt.Println("EuskoTrips Recommendation API")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if cfg != nil {
		errs = append(errs, cfg.ValidateAPI()...)
	}
	logger := middleware.NewLogger(envOf(cfg))
	slog.SetDefault(logger)
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	if err := run(cfg, logger); err != nil {
		logger.Error("api server failed", "error", err)
		os.Exit(1)
	}
}

func envOf(cfg *config.Config) string {
	if cfg == nil {
		return config.DefaultEnv
	}
	return cfg.Env
}

func run(cfg *config.Config, logger *slog.Logger) error {
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:    tracing.ServiceAPI,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}()

	indexConfig := index.DefaultConfig()
	indexConfig.URL = cfg.ElasticsearchURL
	indexConfig.IndexName = cfg.ElasticsearchIndex
	indexConfig.Username = cfg.ElasticsearchUsername
	indexConfig.Password = cfg.ElasticsearchPassword
	store, err := index.NewElasticsearchStore(indexConfig, logger)
	if err != nil {
		return fmt.Errorf("create index store: %w", err)
	}

	favStore, err := favorites.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open favorites store: %w", err)
	}
	defer func() {
		if err := favStore.Close(); err != nil {
			logger.Error("failed to close favorites store", "error", err)
		}
	}()
	if favStore.Dialect() == favorites.DialectSQLite {
		// PostgreSQL schemas are managed by migrations/; local SQLite files are not.
		if err := favStore.Migrate(context.Background()); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rankingMetrics := ranking.NewMetrics()
	if err := rankingMetrics.Register(reg); err != nil {
		return fmt.Errorf("register ranking metrics: %w", err)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(reg); err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	rankingConfig := ranking.DefaultConfig()
	rankingConfig.CandidatePoolSize = cfg.RankCandidatePoolSize
	bonuses, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("using default ranking bonuses", "error", err)
	}
	rankingConfig.Bonuses = bonuses

	ranker, err := ranking.NewRanker(store, favStore, rankingConfig, rankingMetrics, logger)
	if err != nil {
		return fmt.Errorf("create ranker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthConfig := api.HealthHandlersConfig{
		DBChecker:    health.NewDBChecker(favStore.DB()),
		IndexChecker: health.NewElasticsearchChecker(store),
	}
	routerConfig := api.RouterConfig{
		Rank:         api.NewRankHandlers(ranker, logger),
		Registry:     reg,
		MetricsToken: cfg.MetricsToken,
		Metrics:      httpMetrics,
		Logger:       logger,
		Version:      version,
	}

	if cfg.RankRateLimitPerMinute > 0 {
		routerConfig.RateLimit = middleware.RankLimit(cfg.RankRateLimitPerMinute)
		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("parse redis url: %w", err)
			}
			client := redis.NewClient(opts)
			defer client.Close()

			healthConfig.RedisChecker = health.NewRedisChecker(client)
			routerConfig.RateLimitStore = middleware.NewRedisRateLimitStore(client).
				WithMetrics(httpMetrics).
				WithLogger(logger)
			logger.Info("rate limiting /rank with redis", "per_minute", cfg.RankRateLimitPerMinute)
		} else {
			memStore := middleware.NewInMemoryRateLimitStore()
			go memStore.RunCleanup(ctx, time.Minute)
			routerConfig.RateLimitStore = memStore
			logger.Info("rate limiting /rank in memory", "per_minute", cfg.RankRateLimitPerMinute)
		}
	}
	routerConfig.Health = api.NewHealthHandlers(healthConfig)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      api.NewRouter(routerConfig),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}
	logger.Info("starting server", "addr", ln.Addr().String(), "version", version)
	return serve(ctx, server, ln, logger, shutdownTimeout)
}

// serve runs server on ln until ctx is cancelled, then drains in-flight
// requests for at most timeout.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
