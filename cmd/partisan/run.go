package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-partisan/partisan/internal/config"
	"github.com/go-partisan/partisan/internal/engine"
	"github.com/go-partisan/partisan/internal/plugins"
	"github.com/go-partisan/partisan/internal/registry"
	"github.com/go-partisan/partisan/internal/statusapi"
	"github.com/go-partisan/partisan/internal/store"
	"github.com/go-partisan/partisan/internal/supervisor"
	"github.com/go-partisan/partisan/internal/task"
	"github.com/go-partisan/partisan/pkg/logger"
)

// runCommand implements `partisan run`, the Go analogue of
// django_partisan's start_partisan management command: flags override the
// matching QueueSettings field when explicitly set, falling back to the
// environment-configured defaults otherwise.
func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	queueName := fs.String("queue_name", task.DefaultQueueName, "queue to supervise")
	minQueueSize := fs.Int("min_queue_size", 0, "refill threshold (0 = use configured default)")
	maxQueueSize := fs.Int("max_queue_size", 0, "target queue depth after refill (0 = use configured default)")
	checksBeforeCleanup := fs.Int("checks_before_cleanup", 0, "supervisor loop ticks between worker health sweeps (0 = use configured default)")
	workersCount := fs.Int("workers_count", 0, "worker pool size (0 = use configured default)")
	sleepDelaySeconds := fs.Int("sleep_delay_seconds", 0, "seconds between queue management ticks (0 = use configured default)")
	statusAddr := fs.String("status_addr", "", "address to serve /healthz and /stats on (empty disables the surface)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting partisan supervisor", "queue", *queueName)

	settings, err := cfg.QueueSettingsFor(*queueName)
	if err != nil {
		return err
	}
	if *minQueueSize != 0 {
		settings.MinQueueSize = *minQueueSize
	}
	if *maxQueueSize != 0 {
		settings.MaxQueueSize = *maxQueueSize
	}
	if *checksBeforeCleanup != 0 {
		settings.ChecksBeforeCleanup = *checksBeforeCleanup
	}
	if *workersCount != 0 {
		settings.WorkersCount = *workersCount
	}
	if *sleepDelaySeconds != 0 {
		settings.SleepDelaySeconds = *sleepDelaySeconds
	}
	if *statusAddr != "" {
		cfg.StatusAPI.Addr = *statusAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := store.NewConnectionWithRetry(&cfg.Database, log.Logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close()

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	defer healthCancel()
	if err := conn.HealthCheck(healthCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	pgStore := store.NewPGStore(conn.Pool, log.Logger)

	reg := registry.New()
	if err := plugins.LoadAll(ctx, reg, cfg, log.Logger); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}

	eng := &engine.Engine{
		Store:                 pgStore,
		Registry:              reg,
		Clock:                 task.RealClock{},
		Logger:                log.Logger,
		DeleteOnComplete:      settings.DeleteTasksOnComplete,
		DefaultPostponeFor:    settings.DefaultPostponeDelaySeconds,
		DefaultPostponesCount: settings.DefaultPostponesCount,
	}

	sup := supervisor.New(*queueName, settings, pgStore, eng, task.RealClock{}, log.Logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sup.Run(groupCtx)
	})

	if cfg.StatusAPI.Addr != "" {
		statusSrv := statusapi.New(cfg.StatusAPI.Addr, cfg.StatusAPI.AllowedOrigins, log, []statusapi.StatsProvider{sup}, time.Now())
		group.Go(func() error {
			return statusSrv.Run(groupCtx)
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("partisan exited with error: %w", err)
	}
	log.Info("partisan supervisor stopped cleanly")
	return nil
}
