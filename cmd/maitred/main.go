package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maitre-io/maitre/internal/activity"
	"github.com/maitre-io/maitre/internal/api"
	"github.com/maitre-io/maitre/internal/config"
	"github.com/maitre-io/maitre/internal/connector"
	"github.com/maitre-io/maitre/internal/connector/rabbitmq"
	slackconn "github.com/maitre-io/maitre/internal/connector/slack"
	"github.com/maitre-io/maitre/internal/connector/telegram"
	"github.com/maitre-io/maitre/internal/connector/webhook"
	"github.com/maitre-io/maitre/internal/menu"
	"github.com/maitre-io/maitre/internal/restaurant"
	"github.com/maitre-io/maitre/internal/roster"
	"github.com/maitre-io/maitre/internal/scheduler"
)

func main() {
	configPath := flag.String("config", os.Getenv("MAITRE_CONFIG"), "Path to config file (JSON or YAML)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Load config (2 modes: file, env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "maitred: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	logLevel, _ := cfg.Logging.SlogLevel()
	if *verbose {
		logLevel = slog.LevelDebug
	}
	bufSize := cfg.Logging.Buffer
	if bufSize == 0 {
		bufSize = activity.DefaultSize
	}
	logBuf := activity.New(bufSize)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(activity.NewHandler(jsonHandler, logBuf))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, logBuf); err != nil {
		logger.Error("maitred failed", "error", err)
		os.Exit(1)
	}
	logger.Info("maitred stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, logBuf *activity.Buffer) error {
	logger.Info("maitred starting", "restaurant", cfg.Restaurant.Name, "storage", cfg.Storage.Driver)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// 1. Roster store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. Event fanout and notifiers
	fanout := connector.NewFanout(connector.DefaultBuffer, logger.With("component", "fanout"))
	hub := api.NewHub(logger.With("component", "stream"))
	fanout.Register(hub)
	closers, err := registerNotifiers(ctx, cfg, fanout, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	// 3. Restaurant
	m, err := menu.New(cfg.Restaurant.Menu...)
	if err != nil {
		return fmt.Errorf("menu: %w", err)
	}
	floor, err := restaurant.New(cfg.Restaurant.Name, restaurant.Options{
		Store:  store,
		Menu:   m,
		Events: fanout,
		Logger: logger.With("component", "restaurant"),
	})
	if err != nil {
		return err
	}
	restored, err := floor.Restore(ctx)
	if err != nil {
		return err
	}
	if restored == 0 {
		if err := seed(floor, cfg.Restaurant, time.Now()); err != nil {
			return err
		}
		logger.Info("floor seeded", "waiters", len(cfg.Restaurant.Waiters), "waiting", len(cfg.Restaurant.Queue))
	}

	// 4. Shift scheduler
	loc, err := cfg.Shifts.Location()
	if err != nil {
		return fmt.Errorf("shifts: %w", err)
	}
	sched := scheduler.New(floor, logger.With("component", "scheduler"), cron.WithLocation(loc))
	for shift, spec := range cfg.Shifts.Specs() {
		if err := sched.Schedule(shift, spec); err != nil {
			return err
		}
	}
	if cfg.Shifts.Close != "" {
		if err := sched.ScheduleClose(cfg.Shifts.Close); err != nil {
			return err
		}
	}

	// 5. API server, with intake when sources are configured
	opts := api.Options{Logs: logBuf, Stream: hub, Shifts: sched}
	if in := cfg.Connectors.Intake; in != nil && len(in.Sources) > 0 {
		sources := make(map[string]webhook.SourceConfig, len(in.Sources))
		for name, src := range in.Sources {
			sources[name] = webhook.SourceConfig{Secret: src.Secret, BearerToken: src.BearerToken}
		}
		opts.Intake = webhook.New(webhook.Config{Sources: sources}, floor, logger.With("component", "intake"))
	}
	apiSrv := api.NewServer(floor, api.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), opts)

	errCh := make(chan error, 3)
	fanoutDone := make(chan struct{})
	go safeGo(logger, "fanout", func() {
		defer close(fanoutDone)
		errCh <- fanout.Run(ctx)
	})
	go safeGo(logger, "scheduler", func() { errCh <- sched.Start(ctx) })
	go safeGo(logger, "api-server", func() { errCh <- apiSrv.Start(ctx) })

	var componentErr error
	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case componentErr = <-errCh:
		if componentErr != nil {
			logger.Error("component failed, shutting down", "error", componentErr)
		}
	}
	stop()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err = errors.Join(componentErr, floor.Save(saveCtx))

	// let queued events reach the notifiers before they are closed
	select {
	case <-fanoutDone:
	case <-saveCtx.Done():
	}
	return err
}

func openStore(ctx context.Context, cfg *config.Config) (roster.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return roster.NewPostgresStore(ctx, cfg.Storage.DSN)
	default:
		if err := os.MkdirAll(cfg.Restaurant.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("data dir: %w", err)
		}
		return roster.NewSQLiteStore(cfg.Storage.Path)
	}
}

// registerNotifiers attaches every configured connector to the fanout and
// returns the cleanups to run on shutdown.
func registerNotifiers(ctx context.Context, cfg *config.Config, fanout *connector.Fanout, logger *slog.Logger) ([]func(), error) {
	var closers []func()

	if sc := cfg.Connectors.Slack; sc != nil {
		n, err := slackconn.New(slackconn.Config{BotToken: sc.Token, Channel: sc.Channel}, logger.With("connector", "slack"))
		if err != nil {
			return closers, err
		}
		if err := n.Check(ctx); err != nil {
			logger.Warn("slack auth check failed", "error", err)
		}
		fanout.Register(n)
	}

	if tc := cfg.Connectors.Telegram; tc != nil {
		n, err := telegram.New(telegram.Config{Token: tc.Token, ChatIDs: tc.ChatIDs}, logger.With("connector", "telegram"))
		if err != nil {
			return closers, err
		}
		fanout.Register(n)
	}

	if mc := cfg.Connectors.RabbitMQ; mc != nil {
		p, err := rabbitmq.Dial(rabbitmq.Config{URL: mc.URL, Exchange: mc.Exchange}, logger.With("connector", "rabbitmq"))
		if err != nil {
			return closers, err
		}
		fanout.Register(p)
		closers = append(closers, func() { p.Close() })
	}

	logger.Info("notifiers registered", "notifiers", fanout.Notifiers())
	return closers, nil
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
