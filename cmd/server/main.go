package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/feichai0017/resume-extractor/api/handlers"
	"github.com/feichai0017/resume-extractor/api/routes"
	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/internal/agent"
	"github.com/feichai0017/resume-extractor/internal/service/document"
	"github.com/feichai0017/resume-extractor/internal/service/extraction"
	"github.com/feichai0017/resume-extractor/pkg/logger"
	"github.com/feichai0017/resume-extractor/pkg/queue"
	"github.com/feichai0017/resume-extractor/pkg/storage"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	log, err := logger.NewLogger(logger.FromConfig(cfg.Logger))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the API holds the OCR key, so it always runs in server context
	serverCfg := *cfg
	serverCfg.Extraction.Context = "server"

	orch, err := extraction.FromConfig(ctx, &serverCfg, log)
	if err != nil {
		log.Fatal("Failed to build extraction pipeline", logger.Error(err))
	}
	ocrProvider, err := agent.NewProcessorFactory(&serverCfg, log).Remote(ctx)
	if err != nil {
		log.Fatal("Failed to build OCR provider", logger.Error(err))
	}

	store, err := storage.NewStorage(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}
	q := queue.NewAsynqQueue(cfg.Queue, log)
	defer q.Close()

	docService := document.NewService(orch, q, store, log, &document.ServiceConfig{
		MaxFileSize:     cfg.Extraction.MaxFileSize,
		RetentionPeriod: cfg.Storage.Retention,
	})

	checks := handlers.NewHealthHandler()
	checks.Register("redis", q.Ping)

	// init handlers
	h := handlers.NewHandlers(docService, ocrProvider, cfg.Extraction.MaxFileSize, checks, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, cfg.Server.AllowedOrigins, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", logger.Error(err))
			stop()
		}
	}()

	grpcServer, err := startHealthServer(ctx, cfg.Server.GRPCAddr, checks, log)
	if err != nil {
		log.Fatal("Failed to start gRPC health server", logger.Error(err))
	}

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
	grpcServer.GracefulStop()
}

// startHealthServer serves grpc.health.v1 and mirrors the HTTP dependency checks into it.
func startHealthServer(ctx context.Context, addr string, checks *handlers.HealthHandler, log logger.Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		for name, result := range checks.Check(ctx) {
			if result != "ok" {
				log.Warn("Dependency unhealthy", logger.String("check", name), logger.String("error", result))
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
		}
		hs.SetServingStatus("", status)
	}
	update()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.Shutdown()
				return
			case <-ticker.C:
				update()
			}
		}
	}()

	go func() {
		log.Info("gRPC health server starting", logger.String("addr", addr))
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("gRPC server error", logger.Error(err))
		}
	}()
	return gs, nil
}
