package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pressdesk/internal/cache"
	"pressdesk/internal/config"
	"pressdesk/internal/driveapi"
	"pressdesk/internal/publisher"
	"pressdesk/internal/scheduler"
	"pressdesk/internal/server"
	"pressdesk/internal/service"
	"pressdesk/internal/sheets"
	"pressdesk/internal/source/eventregistry"
	"pressdesk/internal/storage/local"
	"pressdesk/internal/storage/remote"
	"pressdesk/internal/workflow"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts, err := driveapi.TokenSource(ctx, cfg.Google)
	if err != nil {
		logger.Error("failed to build google credentials", "error", err)
		os.Exit(1)
	}

	driveClient, err := driveapi.New(ctx, cfg.Google)
	if err != nil {
		logger.Error("failed to create drive client", "error", err)
		os.Exit(1)
	}

	sheetManager, err := sheets.NewManager(ctx, ts, driveClient, cfg.Google, cfg.Folders, logger)
	if err != nil {
		logger.Error("failed to create sheets manager", "error", err)
		os.Exit(1)
	}

	// The publisher is optional; without a broker URL project events
	// simply go unannounced.
	var pub service.Publisher
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := publisher.NewRabbitMQ(cfg.RabbitMQ, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	} else {
		logger.Info("no rabbitmq url configured, project events disabled")
	}

	remoteStore := remote.NewStore(driveClient, cfg.Folders, logger)
	localStore := local.NewStore(cfg.Local.DataDir, logger)
	synchronizer := service.NewSynchronizer(remoteStore, localStore, pub, logger)

	projectCache := cache.New(synchronizer, logger)
	articleSource := eventregistry.New(cfg.EventRegistry, logger)
	workflowRunner := workflow.NewRunner(cfg.Workflow, logger)

	initCtx, initCancel := context.WithTimeout(ctx, 2*time.Minute)
	projects, err := synchronizer.Initialize(initCtx)
	initCancel()
	if err != nil {
		logger.Error("initialize failed", "error", err)
		os.Exit(1)
	}
	logger.Info("initialized project stores", "projects", len(projects))

	sched := scheduler.NewScheduler(projectCache, cfg.Sync.Interval, logger)
	go func() {
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
		}
	}()

	srv := server.New(synchronizer, projectCache, sheetManager, articleSource, workflowRunner, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "addr", cfg.Server.Addr, "sync_interval", cfg.Sync.Interval)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
