package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/common/mq"
	"ojcore/internal/judge"
	"ojcore/internal/sandbox"
	"ojcore/pkg/utils/logger"
)

func main() {
	configPath := flag.String("config", "configs/judged.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "judged: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Open(cfg.MySQL)
	if err != nil {
		return err
	}
	defer pool.Close()

	queue, err := mq.NewKafkaQueue(cfg.Kafka)
	if err != nil {
		return err
	}
	defer queue.Close()

	// Live status snapshots are optional; the daemon still judges with
	// redis down.
	var statusStore *judge.StatusStore
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		logger.Warn(ctx, "redis unavailable, live status disabled", zap.Error(err))
	} else {
		defer redisCache.Close()
		statusStore = judge.NewStatusStore(redisCache)
	}

	runner, err := sandbox.NewEngine(cfg.Sandbox)
	if err != nil {
		return err
	}

	repo := judge.NewRepository(pool)
	engine := judge.NewEngine(cfg.Engine, repo, runner, statusStore)

	worker := judge.NewWorker(cfg.Worker, engine, queue)
	if err := worker.Register(ctx); err != nil {
		return err
	}

	sweeper := judge.NewSweeper(cfg.Sweeper, repo, queue)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	health := judge.NewHealthChecker(cfg.Health, runner, cfg.Engine.WorkRoot)
	if err := health.Start(ctx); err != nil {
		return err
	}
	defer health.Stop()

	if err := queue.Start(); err != nil {
		return err
	}
	logger.Info(ctx, "judge daemon started",
		zap.String("topic", cfg.Worker.Topic),
		zap.Int("concurrency", cfg.Worker.Concurrency))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info(ctx, "shutting down", zap.String("signal", sig.String()))

	// Stop consuming first so in-flight judge runs finish or get killed
	// before the process exits; stranded submissions are re-enqueued by
	// the sweep on the next start.
	cancel()
	return queue.Stop()
}
