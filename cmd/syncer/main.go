// Command syncer polls JSON feeds and republishes new items to Mastodon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"mastodon_syncer/internal/config"
	"mastodon_syncer/internal/mastodon"
	"mastodon_syncer/internal/publisher"
	"mastodon_syncer/internal/scheduler"
	"mastodon_syncer/internal/service"
	"mastodon_syncer/internal/source/jsonfeed"
	"mastodon_syncer/internal/storage/postgres"
	"mastodon_syncer/internal/storage/statefile"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		once       bool
	)

	cmd := &cobra.Command{
		Use:           "syncer",
		Short:         "Sync JSON feeds to a Mastodon account",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, once)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	cmd.Flags().BoolVar(&once, "once", false, "run a single sync and exit")

	return cmd
}

func run(ctx context.Context, configPath string, once bool) error {
	logger := setupLogger("info")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	logger = setupLogger(cfg.LogLevel)

	state, closeState, err := buildStateStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize state store", "error", err)
		return err
	}
	defer closeState()

	mastodonClient := mastodon.New(mastodon.Config{
		BaseURL:         cfg.Mastodon.BaseURL,
		AccessToken:     cfg.Mastodon.AccessToken,
		Visibility:      cfg.Mastodon.Visibility,
		MaxStatusLength: cfg.Mastodon.MaxStatusLength,
		Timeout:         cfg.Mastodon.Timeout,
		RetryAttempts:   cfg.Sync.RetryAttempts,
		MediaTimeout:    cfg.Sync.MediaTimeout,
	}, logger)

	sources := make([]service.Source, 0, len(cfg.Feeds.URLs))
	for _, url := range cfg.Feeds.URLs {
		sources = append(sources, jsonfeed.New(jsonfeed.Config{
			URL:      url,
			MaxMedia: cfg.Mastodon.MaxMediaAttachments,
			Timeout:  cfg.Mastodon.Timeout,
		}, logger))
	}

	var events service.EventPublisher
	if cfg.Events.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.Events.URL,
			Exchange:   cfg.Events.Exchange,
			RoutingKey: cfg.Events.RoutingKey,
			QueueName:  cfg.Events.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			return err
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Bad credentials are fatal; everything after this point degrades
	// per item rather than crashing.
	account, err := mastodonClient.VerifyCredentials(ctx)
	if err != nil {
		logger.Error("mastodon authentication failed", "error", err)
		return err
	}
	logger.Info("authenticated", "account", "@"+account.Username)

	syncService := service.NewSyncService(
		sources,
		state,
		mastodonClient,
		events,
		logger,
		cfg.Sync,
	)

	if once {
		if _, err := syncService.Sync(ctx); err != nil {
			logger.Error("sync failed", "error", err)
			return err
		}
		return nil
	}

	sched := scheduler.NewScheduler(syncService, cfg.Sync.CheckInterval, logger)

	logger.Info("starting feed syncer",
		"feeds", len(sources),
		"interval", cfg.Sync.CheckInterval,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		return err
	}
	return nil
}

func buildStateStore(cfg *config.Config, logger *slog.Logger) (service.StateStore, func(), error) {
	switch cfg.State.Backend {
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.State.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		logger.Info("connected to database")
		return postgres.NewStateStore(db, cfg.Sync.HistorySize), func() { db.Close() }, nil
	default:
		store, err := statefile.New(cfg.State.Path, cfg.Sync.HistorySize, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
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
