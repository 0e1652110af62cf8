package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/collective-ledger/internal/application/services"
	"github.com/bimakw/collective-ledger/internal/config"
	"github.com/bimakw/collective-ledger/internal/infrastructure/cache"
	"github.com/bimakw/collective-ledger/internal/infrastructure/database"
	"github.com/bimakw/collective-ledger/internal/infrastructure/fxrate"
	"github.com/bimakw/collective-ledger/internal/infrastructure/registry"
	"github.com/bimakw/collective-ledger/internal/presentation/handlers"
	"github.com/bimakw/collective-ledger/internal/presentation/middleware"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting collective-ledger API",
		zap.Int("port", cfg.API.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	storage, err := cache.NewStorage(cfg.Cache, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Failed to open cache backend, falling back to memory", zap.Error(err))
		storage = cache.NewMemoryStorage()
	}
	responseCache := cache.New(storage, logger,
		cache.WithDefaultVersion(cfg.Cache.Version),
		cache.WithRefreshTimeout(cfg.Cache.RefreshTimeout),
	)
	defer responseCache.Close()

	collectives, err := registry.Load(cfg.Data.CollectivesFile, cfg.Data.TokensFile, logger)
	if err != nil {
		logger.Fatal("Failed to load collectives", zap.Error(err))
	}
	rates, err := fxrate.LoadDir(cfg.Data.FxRateDir, logger)
	if err != nil {
		logger.Fatal("Failed to load exchange rates", zap.Error(err))
	}

	tokenRepo := database.NewTokenRepo(db.DB())
	txRepo := database.NewTransactionRepo(db.DB())

	transactionService := services.NewTransactionService(txRepo, collectives, responseCache, cfg.Cache, logger)
	statsService := services.NewStatsService(transactionService, collectives, rates, logger)
	leaderboardService := services.NewLeaderboardService(transactionService, collectives, rates, logger)
	tokenService := services.NewTokenService(tokenRepo, collectives, logger)

	transactionHandler := handlers.NewTransactionHandler(transactionService, logger)
	statsHandler := handlers.NewStatsHandler(statsService, logger)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService, logger)
	tokenHandler := handlers.NewTokenHandler(tokenService, logger)
	healthHandler := handlers.NewHealthHandler(
		handlers.Component{Name: "database", Checker: db, Critical: true},
		handlers.Component{Name: "cache", Checker: responseCache},
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)

	// Probes are not rate limited
	healthHandler.RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))
		transactionHandler.RegisterRoutes(r)
		statsHandler.RegisterRoutes(r)
		leaderboardHandler.RegisterRoutes(r)
		tokenHandler.RegisterRoutes(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	go startMetricsServer(cfg.API.MetricsPort, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func setupLogger(cfg config.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}

func startMetricsServer(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", zap.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
