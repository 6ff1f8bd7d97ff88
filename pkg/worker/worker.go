package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/resume-extractor/pkg/logger"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

type Config struct {
	// CleanupInterval 为 0 时不做定期清理
	CleanupInterval time.Duration
}

type BaseWorker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	logger   logger.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func (w *BaseWorker) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.server.Shutdown()
	})
	return nil
}
