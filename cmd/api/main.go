package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/api"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/auth"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal/postgres"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/logging"
	httptransport "github.com/tiesklinkhamer/garmin-to-notion/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "garmin-to-notion-api")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs journal.Reader = journal.NewMemory()
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		repo := postgres.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare journal schema", zap.Error(err))
		}
		runs = repo
	} else {
		logger.Warn("POSTGRES_URL not set, serving an empty in-memory journal")
	}

	handler := api.NewHandler(runs)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	requestLog := httptransport.RequestLogger(func(method, path string, status int, elapsed time.Duration) {
		logger.Info("request", zap.String("method", method), zap.String("path", path), zap.Int("status", status), zap.Duration("elapsed", elapsed))
	})
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, requestLog(authMiddleware.Wrap(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("journal api listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
