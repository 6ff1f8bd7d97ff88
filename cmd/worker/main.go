package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/internal/service/document"
	"github.com/feichai0017/resume-extractor/internal/service/extraction"
	"github.com/feichai0017/resume-extractor/pkg/logger"
	"github.com/feichai0017/resume-extractor/pkg/queue"
	"github.com/feichai0017/resume-extractor/pkg/storage"
	"github.com/feichai0017/resume-extractor/pkg/worker"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.NewLogger(
		logger.FromConfig(cfg.Logger),
		logger.WithInitialFields(map[string]interface{}{"component": "worker"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// jobs are submitted through the API, which runs in server context
	workerCfg := *cfg
	workerCfg.Extraction.Context = "server"

	orch, err := extraction.FromConfig(ctx, &workerCfg, log)
	if err != nil {
		log.Fatal("Failed to build extraction pipeline", logger.Error(err))
	}

	store, err := storage.NewStorage(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}
	q := queue.NewAsynqQueue(cfg.Queue, log)
	defer q.Close()

	// 创建文档服务
	docService := document.NewService(orch, q, store, log, &document.ServiceConfig{
		MaxFileSize:     cfg.Extraction.MaxFileSize,
		RetentionPeriod: cfg.Storage.Retention,
	})

	var cleanup time.Duration
	if cfg.Storage.Retention > 0 {
		cleanup = time.Hour
	}
	documentWorker := worker.NewDocumentWorker(
		queue.NewServer(cfg.Queue, log),
		worker.Config{CleanupInterval: cleanup},
		docService,
		log,
	)

	if err := documentWorker.Start(ctx); err != nil {
		log.Fatal("Failed to start worker", logger.Error(err))
	}
	log.Info("Worker started",
		logger.String("redis", cfg.Queue.RedisAddr),
		logger.Int("concurrency", cfg.Queue.Concurrency),
	)

	<-ctx.Done()

	// 优雅关闭
	log.Info("Shutting down worker...")
	documentWorker.Stop()
	log.Info("Worker stopped")
}
