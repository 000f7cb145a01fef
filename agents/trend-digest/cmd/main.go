package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	trenddigest "trend-digest/agents/trend-digest"
	"trend-digest/shared/api"
	"trend-digest/shared/config"
	"trend-digest/shared/logging"
	"trend-digest/shared/monitoring"
	"trend-digest/shared/scheduler"
	"trend-digest/shared/storage"
)

func main() {
	once := flag.Bool("once", false, "run discovery then processing once and exit")
	discoverOnly := flag.Bool("discover", false, "run discovery once and exit")
	processOnly := flag.Bool("process", false, "run processing once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var jobs []string
	switch {
	case *discoverOnly:
		jobs = append(jobs, trenddigest.JobDiscover)
	case *processOnly:
		jobs = append(jobs, trenddigest.JobProcess)
	}

	if err := run(ctx, cfg, logger, *once || len(jobs) > 0, jobs); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("trend digest exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, runOnce bool, jobs []string) error {
	if err := storage.Migrate(cfg.Database.URL, logger); err != nil {
		return err
	}

	pool, err := storage.NewPool(ctx, cfg.Database.URL, storage.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	repo := storage.NewPostgresRepository(pool)
	metrics := monitoring.NewMetrics()
	monitor := monitoring.NewMonitor(metrics, logger)

	agent := trenddigest.NewTrendDigestAgent(cfg, repo, metrics, logger)
	sched := scheduler.New(agent, monitor, logger)

	if runOnce {
		logger.Info("running once", zap.Strings("jobs", jobs))
		return sched.RunOnce(ctx, jobs...)
	}

	if err := agent.Initialize(ctx); err != nil {
		return err
	}

	health := monitoring.NewHealthChecker(monitor)
	health.AddCheck("database", repo.Ping)

	server := api.NewServer(api.Deps{
		Pipeline:         agent,
		Runner:           sched,
		Stats:            repo,
		Health:           health,
		Monitor:          monitor,
		Metrics:          metrics,
		DefaultBatchSize: cfg.Pipeline.BatchSize,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, fmt.Sprintf(":%d", cfg.Monitoring.HealthPort))
	})
	g.Go(func() error {
		return sched.Start(gctx)
	})
	return g.Wait()
}
