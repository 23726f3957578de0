package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/angeloszaimis/keepalive/config"
	"github.com/angeloszaimis/keepalive/internal/cycle"
	"github.com/angeloszaimis/keepalive/internal/events"
	"github.com/angeloszaimis/keepalive/internal/handler"
	"github.com/angeloszaimis/keepalive/internal/httpserver"
	"github.com/angeloszaimis/keepalive/internal/metrics"
	"github.com/angeloszaimis/keepalive/internal/pinger"
	"github.com/angeloszaimis/keepalive/internal/registry"
	"github.com/angeloszaimis/keepalive/internal/scheduler"
	"github.com/angeloszaimis/keepalive/internal/storage"
	"github.com/angeloszaimis/keepalive/internal/storage/memory"
	"github.com/angeloszaimis/keepalive/internal/storage/postgres"
	"github.com/angeloszaimis/keepalive/internal/storage/sqlite"
	"github.com/angeloszaimis/keepalive/pkg/logger"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Keepalive service failed", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("Keepalive service shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("Registry storage ready", slog.String("driver", cfg.Storage.Driver))

	publisher := openPublisher(ctx, cfg.Events, logger.Component(log, "events"))
	defer publisher.Close()

	collector := metrics.NewCollector(1000, logger.Component(log, "metrics"))
	collector.Start(ctx)

	sched, reg := buildScheduler(cfg, store, publisher, collector, log)
	sched.Start(ctx)

	keepaliveHandler := handler.NewKeepaliveHandler(ctx, logger.Component(log, "http"), reg, sched, cfg.Keepalive.CronSecret)
	limiter := handler.NewTriggerLimiter(cfg.Keepalive.TriggerRPS, cfg.Keepalive.TriggerBurst, logger.Component(log, "http"))
	router := setupRouter(keepaliveHandler, limiter, collector, cfg.Server.AllowedOrigins, logger.Component(log, "http"))

	// The trigger endpoint holds the response open for a whole cycle.
	srv, err := httpserver.New(cfg.Server.Address, router, cfg.Keepalive.Timeout()+30*time.Second)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", slog.String("addr", srv.Addr()))
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	sched.Wait()
	return nil
}

func buildScheduler(cfg *config.Config, store storage.Store, publisher events.Publisher, collector *metrics.Collector, log *slog.Logger) (*scheduler.Scheduler, *registry.Registry) {
	reg := registry.New(store, registry.WithURLPattern(regexp.MustCompile(cfg.Keepalive.URLPattern)))

	p := pinger.New(
		pinger.WithTimeout(cfg.Keepalive.Timeout()),
		pinger.WithPath(cfg.Keepalive.PingPath),
	)

	runner := cycle.NewRunner(reg, p, logger.Component(log, "cycle"),
		cycle.WithCollector(collector),
		cycle.WithPublisher(publisher),
	)

	sched := scheduler.New(runner, reg, scheduler.Options{
		Interval:   cfg.Keepalive.Interval(),
		RunOnStart: cfg.Keepalive.RunOnStart,
		Collector:  collector,
		Logger:     logger.Component(log, "scheduler"),
	})

	return sched, reg
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// openPublisher falls back to the no-op publisher when Redis is not configured
// or unreachable; cycle reports are an optional side channel.
func openPublisher(ctx context.Context, cfg config.EventsConfig, log *slog.Logger) events.Publisher {
	if cfg.RedisAddr == "" {
		return events.NopPublisher{}
	}

	publisher, err := events.NewRedisPublisher(ctx, events.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Channel:  cfg.Channel,
	}, log)
	if err != nil {
		log.Warn("Cycle reports will not be published", slog.Any("err", err))
		return events.NopPublisher{}
	}
	return publisher
}
