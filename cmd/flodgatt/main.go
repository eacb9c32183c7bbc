package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baajur/flodgatt/internal/auth"
	"github.com/baajur/flodgatt/internal/config"
	"github.com/baajur/flodgatt/internal/database"
	"github.com/baajur/flodgatt/internal/hub"
	"github.com/baajur/flodgatt/internal/metrics"
	"github.com/baajur/flodgatt/internal/poller"
	"github.com/baajur/flodgatt/internal/redis"
	"github.com/baajur/flodgatt/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/flodgatt.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting flodgatt",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Redis users and database selection are not supported on pub/sub
	// connections; surface the mismatch instead of silently misusing it.
	if cfg.Redis.User != "" {
		logger.Warn("redis.user is not supported on pub/sub connections, ignoring",
			"user", cfg.Redis.User,
		)
	}
	if cfg.Redis.DB != "" {
		logger.Warn("redis.db has no effect on pub/sub connections, ignoring",
			"db", cfg.Redis.DB,
		)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to the Mastodon database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// Dial and handshake the Redis connection pair
	logger.Info("connecting to redis",
		"host", cfg.Redis.Host,
		"port", cfg.Redis.Port,
		"namespace", cfg.Redis.Namespace,
	)
	conn, err := redis.Dial(redis.Config{
		Host:      cfg.Redis.Host,
		Port:      cfg.Redis.Port,
		Password:  cfg.Redis.Password,
		Namespace: cfg.Redis.Namespace,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("redis connected")

	// Wire the pipeline: poller drains redis, hub fans out to clients
	streamHub := hub.New(nil, logger)
	p := poller.New(conn, streamHub, cfg.Redis.PollInterval.Std(), logger)
	streamHub.SetSubscriber(p)

	authenticator := auth.New(db, logger)
	server := hub.NewServer(streamHub, authenticator, db, db, logger)

	streamingServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Routes(),
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, metrics.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metricsMux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting streaming server", "port", cfg.Server.Port)
		if err := streamingServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("streaming server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		streamingServer.Shutdown(shutdownCtx)
		metricsServer.Shutdown(shutdownCtx)
		return nil
	})

	logger.Info("flodgatt running",
		"streaming_url", fmt.Sprintf("ws://localhost:%d/api/v1/streaming", cfg.Server.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("flodgatt exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("flodgatt stopped")
}
