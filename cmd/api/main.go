// Package main is the entry point for the feed API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/venuefeed/internal/api"
	"github.com/onnwee/venuefeed/internal/config"
	"github.com/onnwee/venuefeed/internal/db"
	"github.com/onnwee/venuefeed/internal/feed"
	"github.com/onnwee/venuefeed/internal/graph"
	"github.com/onnwee/venuefeed/internal/health"
	"github.com/onnwee/venuefeed/internal/middleware"
	"github.com/onnwee/venuefeed/internal/ranking"
	"github.com/onnwee/venuefeed/internal/social"
	"github.com/onnwee/venuefeed/internal/tracing"
	"github.com/onnwee/venuefeed/internal/trending"
	"github.com/onnwee/venuefeed/internal/vector"
)

const serviceName = "venuefeed-api"

// graphBackend is satisfied by both the in-memory and the Postgres store.
type graphBackend interface {
	graph.Store
	graph.Recorder
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Venuefeed API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	feedMetrics := feed.NewMetrics()
	if err := feedMetrics.Register(registry); err != nil {
		logger.Error("failed to register feed metrics", "error", err)
		os.Exit(1)
	}

	// Relationship graph: Postgres when configured, in-memory otherwise.
	var store graphBackend
	var dbChecker api.HealthChecker
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		store = graph.NewPostgresStore(conn, logger)
		dbChecker = health.NewDBChecker(conn)
		logger.Info("using postgres graph store")
	} else {
		store = graph.NewMemoryStore()
		logger.Info("using in-memory graph store")
	}

	// Trending counters: Redis when configured, in-memory otherwise.
	trendingWindow := time.Duration(cfg.TrendingWindowHours) * time.Hour
	var counter trending.Counter
	var redisChecker api.HealthChecker
	var rateLimitStore middleware.RateLimitStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		counter = trending.NewRedisCounter(client, trendingWindow)
		redisChecker = health.NewRedisChecker(client)
		rateLimitStore = middleware.NewRedisRateLimitStore(client).WithMetrics(httpMetrics)
		logger.Info("using redis trending counter")
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
		if cfg.DatabaseURL != "" {
			// The graph already persists every engagement; count from it.
			counter = trending.NewStoreCounter(store)
			logger.Info("using graph-backed trending counter")
		} else {
			counter = trending.NewMemoryCounter()
			logger.Info("using in-memory trending counter")
		}
	}

	// Taste index. In-process cosine index; a remote nearest-neighbor
	// service can be swapped in through the vector.Index interface.
	index := vector.NewMemoryIndex(cfg.VectorDim)

	// Fusion weights, with optional calibration overrides.
	weights := ranking.DefaultPolicyWeights()
	if cfg.CalibrationPath != "" {
		override, err := ranking.LoadCalibration(cfg.CalibrationPath)
		if err != nil {
			logger.Error("failed to load calibration", "path", cfg.CalibrationPath, "error", err)
			os.Exit(1)
		}
		weights = ranking.MergeCalibration(weights, override)
		logger.Info("loaded fusion weight calibration", "path", cfg.CalibrationPath)
	}

	// Feed pipeline
	source := feed.NewSource(index, store, logger)
	aggregator := social.NewAggregator(store, logger)
	pipeline := feed.NewPipeline(source, aggregator, counter, weights, trendingWindow, logger, feedMetrics)
	pipeline.Defaults(cfg.DefaultRadiusKm, cfg.DefaultLimit)

	// Handlers
	feedHandlers := api.NewFeedHandlers(pipeline, logger)
	engageHandlers := api.NewEngageHandlers(store, counter, index, feedMetrics, logger)
	userHandlers := api.NewUserHandlers(store, store, index, logger)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    dbChecker,
		RedisChecker: redisChecker,
	})

	// Rate limits: engagement writes get more headroom than feed reads.
	feedLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultFeedLimit(), middleware.UserKeyFunc(), httpMetrics)
	engageLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultEngageLimit(), middleware.UserKeyFunc(), httpMetrics)

	mux := http.NewServeMux()
	mux.Handle("/feed", feedLimiter(http.HandlerFunc(feedHandlers.VenueFeed)))
	mux.Handle("/feed-video", feedLimiter(http.HandlerFunc(feedHandlers.VideoFeed)))
	mux.Handle("/engage", engageLimiter(http.HandlerFunc(engageHandlers.Engage)))
	mux.Handle("/engage-video", engageLimiter(http.HandlerFunc(engageHandlers.EngageVideo)))
	mux.Handle("/share", engageLimiter(http.HandlerFunc(engageHandlers.Share)))
	mux.HandleFunc("/friends/add", userHandlers.AddFriend)
	mux.HandleFunc("/users", userHandlers.ListUsers)
	mux.HandleFunc("/user/", userHandlers.Profile)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"` + serviceName + `","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Middleware chain, outermost first: RequestID -> Logging ->
	// HTTPMetrics -> Tracing -> CORS -> Profiling.
	var handler http.Handler = mux
	if cfg.ProfilingEnabled {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}
	if origins := splitOrigins(cfg.CORSAllowedOrigins); len(origins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: origins,
			MaxAge:         300,
		})(handler)
	}
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// splitOrigins parses the comma-separated CORS origin list.
func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
