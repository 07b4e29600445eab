// Command cronjob runs the ledger's scheduled jobs: the overdue invoice sweep
// and the balance reconciliation. With -run-once it runs both immediately and
// exits, which suits an external scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahakem/bluemind-members-sub000/internal/config"
	"github.com/ahakem/bluemind-members-sub000/internal/infra"
	"github.com/ahakem/bluemind-members-sub000/internal/jobs"
	"github.com/ahakem/bluemind-members-sub000/internal/logging"
	"github.com/ahakem/bluemind-members-sub000/internal/server"
)

func main() {
	runOnce := flag.Bool("run-once", false, "run every job once and exit")
	timeout := flag.Duration("job-timeout", 5*time.Minute, "upper bound for a single job run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, App: cfg.AppName + " cron", Env: cfg.AppEnv})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, "bluemind-cron")
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
	}

	store, closeStore, err := infra.OpenStore(ctx, cfg, cache, logger)
	if err != nil {
		logger.Error("open document store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	services := server.NewServices(cfg, store, cache, logger)
	runner := jobs.NewRunner(services.Invoices, services.Ledger, logger, *timeout)

	if *runOnce {
		if err := runner.RunAll(ctx); err != nil {
			logger.Error("jobs failed", "error", err)
			os.Exit(1)
		}
		return
	}

	scheduler, err := jobs.NewScheduler(runner, jobs.Schedules{
		OverdueSweep: cfg.Jobs.OverdueSweepSchedule,
		Reconcile:    cfg.Jobs.ReconcileSchedule,
	}, logger)
	if err != nil {
		logger.Error("schedule jobs", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("scheduler started", "jobs", scheduler.Entries())

	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	scheduler.Stop(stopCtx)
	logger.Info("scheduler exited cleanly")
}
