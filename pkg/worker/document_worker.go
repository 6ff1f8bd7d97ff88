package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/resume-extractor/pkg/logger"
	"github.com/feichai0017/resume-extractor/pkg/queue"
)

// TaskHandler runs queued extraction jobs.
type TaskHandler interface {
	HandleDocument(ctx context.Context, task *queue.Task) error
	CleanupTasks(ctx context.Context) error
}

type DocumentWorker struct {
	BaseWorker
	handler TaskHandler
	config  Config
}

func NewDocumentWorker(server *asynq.Server, cfg Config, handler TaskHandler, log logger.Logger) *DocumentWorker {
	if log == nil {
		log = logger.NewNop()
	}
	w := &DocumentWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log.Named("worker"),
			stopChan: make(chan struct{}),
		},
		handler: handler,
		config:  cfg,
	}

	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeResumeExtract, w.handleResumeExtract)
	return w
}

func (w *DocumentWorker) handleResumeExtract(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.Int("payloadBytes", len(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w: %w", err, asynq.SkipRetry)
	}

	if task.ID == "" || task.Metadata == nil || task.Payload == nil {
		w.logger.Error("Invalid task data", logger.String("taskId", task.ID))
		return fmt.Errorf("invalid task data: missing required fields: %w", asynq.SkipRetry)
	}

	ctx = logger.ContextWithRequestID(ctx, task.ID)
	w.writeResult(t, map[string]interface{}{"status": "running", "progress": 0})

	err := w.handler.HandleDocument(ctx, &task)
	if err != nil {
		w.writeResult(t, map[string]interface{}{"status": "failed", "error": err.Error()})
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.writeResult(t, map[string]interface{}{"status": "completed", "progress": 1})
	return nil
}

// writeResult 写入 asynq 任务结果, 任务不是由服务器分发时跳过
func (w *DocumentWorker) writeResult(t *asynq.Task, v map[string]interface{}) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	data, _ := json.Marshal(v)
	if _, err := rw.Write(data); err != nil {
		w.logger.Error("Failed to write task result", logger.Error(err))
	}
}

func (w *DocumentWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	if w.config.CleanupInterval > 0 {
		go w.cleanupLoop(ctx)
	}

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopChan:
		}
	}()
	return nil
}

func (w *DocumentWorker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			if err := w.handler.CleanupTasks(ctx); err != nil {
				w.logger.Error("Cleanup failed", logger.Error(err))
			}
		}
	}
}
