package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/collective-ledger/internal/application/services"
	"github.com/bimakw/collective-ledger/internal/config"
	"github.com/bimakw/collective-ledger/internal/infrastructure/cache"
	"github.com/bimakw/collective-ledger/internal/infrastructure/database"
	"github.com/bimakw/collective-ledger/internal/infrastructure/ethereum"
	"github.com/bimakw/collective-ledger/internal/infrastructure/registry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting collective-ledger indexer",
		zap.String("chain", cfg.Ethereum.ChainName),
		zap.Strings("extra_tokens", cfg.Indexer.TokenAddresses),
		zap.String("rpc_url", cfg.Ethereum.RPCURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, cfg.Database.MigrationsDir); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	ethClient, err := ethereum.NewClient(cfg.Ethereum, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Ethereum node", zap.Error(err))
	}
	defer ethClient.Close()

	// Block timestamps and token metadata never change, so the indexer keeps
	// them in the cache for the life of the process (or on disk with leveldb).
	storage, err := cache.NewStorage(cfg.Cache, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Failed to open cache backend, falling back to memory", zap.Error(err))
		storage = cache.NewMemoryStorage()
	}
	chainCache := cache.New(storage, logger,
		cache.WithDefaultVersion(cfg.Cache.Version),
		cache.WithRefreshTimeout(cfg.Cache.RefreshTimeout),
	)
	defer chainCache.Close()

	collectives, err := registry.Load(cfg.Data.CollectivesFile, cfg.Data.TokensFile, logger)
	if err != nil {
		logger.Fatal("Failed to load collectives", zap.Error(err))
	}

	tokenRepo := database.NewTokenRepo(db.DB())
	txRepo := database.NewTransactionRepo(db.DB())
	stateRepo := database.NewIndexerStateRepo(db.DB())

	chain := ethereum.ChainRef{Name: cfg.Ethereum.ChainName, ID: cfg.Ethereum.ChainID}
	fetcher := ethereum.NewFetcher(ethClient, chain, chainCache, cfg.Indexer, logger)
	metadata := ethereum.NewMetadataFetcher(ethClient, chain.Name, chainCache, logger)

	indexerService := services.NewIndexerService(
		chain.Name,
		fetcher,
		metadata,
		tokenRepo,
		txRepo,
		stateRepo,
		collectives,
		cfg.Indexer,
		logger,
	)

	if err := indexerService.Start(ctx); err != nil {
		logger.Fatal("Failed to start indexer", zap.Error(err))
	}

	go startMetricsServer(cfg.Indexer.MetricsPort, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping indexer...")

	indexerService.Stop()

	logger.Info("Indexer stopped")
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
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

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
