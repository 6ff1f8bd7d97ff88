package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// TaskType 定义任务类型
const (
	TaskTypeResumeExtract = "resume:extract"
)

// 队列名称
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

var queueNames = []string{QueueCritical, QueueDefault, QueueLow}

// ErrTaskNotFound is returned when no queue and no saved status knows the task.
var ErrTaskNotFound = errors.New("task not found")

// Queue 接口定义
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveStatus(ctx context.Context, status *TaskStatus) error
}

// Task 定义任务结构
type Task struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Priority  int                    `json:"priority"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  map[string]string      `json:"metadata"`
	CreatedAt time.Time              `json:"createdAt"`
}

// TaskStatus 定义任务状态
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// AsynqQueue 基于 asynq 和 redis 的队列实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	config    config.QueueConfig
	logger    logger.Logger
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(cfg config.QueueConfig, log logger.Logger) *AsynqQueue {
	if log == nil {
		log = logger.NewNop()
	}
	redisOpt := RedisOpt(cfg)

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis: redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		}),
		config: cfg,
		logger: log.Named("queue"),
	}
}

// RedisOpt builds the asynq connection options for cfg.
func RedisOpt(cfg config.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	}
}

// NewServer 创建 worker 使用的 asynq 服务器
func NewServer(cfg config.QueueConfig, log logger.Logger) *asynq.Server {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{QueueCritical: 6, QueueDefault: 3, QueueLow: 1}
	}
	return asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queues,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return cfg.RetryDelay
		},
		Logger: asynqLogger{log.Named("asynq")},
	})
}

// Ping checks the redis connection.
func (q *AsynqQueue) Ping(ctx context.Context) error {
	return q.redis.Ping(ctx).Err()
}

// Close releases the redis connections.
func (q *AsynqQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.redis.Close())
}

// Enqueue 将任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(q.config.MaxRetries),
		asynq.Queue(queueFor(task.Priority)),
	}
	if q.config.ProcessTimeout > 0 {
		opts = append(opts, asynq.Timeout(q.config.ProcessTimeout))
	}
	if task.ID != "" {
		opts = append(opts, asynq.TaskID(task.ID))
	}
	if q.config.StatusTTL > 0 {
		opts = append(opts, asynq.Retention(q.config.StatusTTL))
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(task.Type, payload), opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	task.ID = info.ID

	q.logger.Debug("Task enqueued",
		logger.String("taskId", info.ID),
		logger.String("queue", info.Queue),
	)
	return nil
}

// queueFor 根据优先级选择队列
func queueFor(priority int) string {
	switch priority {
	case 1:
		return QueueCritical
	case 2:
		return QueueDefault
	default:
		return QueueLow
	}
}

// GetTaskStatus 获取任务状态
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	// 首先从 Redis 获取保存的状态
	data, err := q.redis.Get(ctx, statusKey(taskID)).Bytes()
	switch {
	case err == nil:
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	// 从所有队列中查找
	for _, name := range queueNames {
		info, err := q.inspector.GetTaskInfo(name, taskID)
		if err == nil {
			return convertAsynqStatus(info), nil
		}
		if !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("failed to inspect queue %s: %w", name, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// CancelTask 取消任务
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	var lastErr error
	for _, name := range queueNames {
		err := q.inspector.DeleteTask(name, taskID)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	// 正在运行的任务只能发送取消信号
	if err := q.inspector.CancelProcessing(taskID); err == nil {
		return nil
	}
	return fmt.Errorf("failed to cancel task: %w", lastErr)
}

// SaveStatus 保存任务状态
func (q *AsynqQueue) SaveStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	ttl := q.config.StatusTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func statusKey(taskID string) string {
	return "task_status:" + taskID
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled:
		status.Status = "pending"
	case asynq.TaskStateActive:
		status.Status = "running"
		status.Progress = 0.5
	case asynq.TaskStateCompleted:
		status.Status = "completed"
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry:
		status.Status = "pending"
		status.Error = info.LastErr
	case asynq.TaskStateArchived:
		status.Status = "failed"
		status.Error = info.LastErr
		status.FinishedAt = info.LastFailedAt
	default:
		status.Status = "pending"
	}

	return status
}

// asynqLogger routes asynq's internal logging into the service logger.
type asynqLogger struct {
	log logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(fmt.Sprint(args...)) }
