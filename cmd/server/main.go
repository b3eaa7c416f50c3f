package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ojcore/internal/auth"
	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/common/mq"
	"ojcore/internal/common/storage"
	"ojcore/internal/contest"
	"ojcore/internal/judge"
	"ojcore/internal/problem"
	"ojcore/internal/scoreboard"
	"ojcore/internal/submission"
	"ojcore/pkg/utils/logger"
)

func main() {
	configPath := flag.String("config", "configs/server.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
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

	pool, err := db.Open(cfg.MySQL)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisCache.Close()

	queue, err := mq.NewKafkaQueue(cfg.Kafka)
	if err != nil {
		return err
	}
	defer queue.Close()

	var archiver *submission.Archiver
	var objects storage.ObjectStorage
	if cfg.MinIO.Enabled {
		minioStore, err := storage.NewMinIOStorage(cfg.MinIO.MinIOConfig)
		if err != nil {
			return err
		}
		if err := minioStore.EnsureBucket(context.Background(), cfg.MinIO.Bucket); err != nil {
			return err
		}
		objects = minioStore
		archiver = submission.NewArchiver(objects, cfg.MinIO.Bucket)
	}

	contestRepo := contest.NewRepository(pool)
	userRepo := auth.NewUserRepository(pool)

	contestService := contest.NewService(contestRepo)
	examService := contest.NewExamService(contestRepo)
	contestCtl := contest.NewController(contestService, examService, userRepo)

	submissionRepo := submission.NewRepository(pool)
	statusStore := judge.NewStatusStore(redisCache)
	submissionService := submission.NewService(submissionRepo, contestRepo, examService,
		queue, redisCache, archiver, cfg.RateLimit)
	streamHandler := submission.NewStreamHandler(submissionService, statusStore)
	submissionCtl := submission.NewController(submissionService, streamHandler)

	boardService := scoreboard.NewService(contestRepo, submissionRepo, scoreboard.NewDirectory(pool))
	boardCtl := scoreboard.NewController(boardService)

	packService := problem.NewPackService(pool, objects, cfg.MinIO.Bucket)
	problemCtl := problem.NewController(packService)

	tm := auth.NewTokenManager(cfg.Auth)
	router := buildRouter(cfg, tm, contestCtl, submissionCtl, boardCtl, problemCtl)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info(context.Background(), "shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
