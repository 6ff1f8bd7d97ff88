package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/internal/utils/validator"
	"github.com/feichai0017/resume-extractor/pkg/converters"
	"github.com/feichai0017/resume-extractor/pkg/logger"
	"github.com/feichai0017/resume-extractor/pkg/queue"
	"github.com/feichai0017/resume-extractor/pkg/storage"
)

// ErrTaskNotReady is returned when a result is requested before the job finished.
var ErrTaskNotReady = errors.New("task is not finished")

type DocumentService struct {
	pipeline  Pipeline
	queue     queue.Queue
	storage   storage.Storage
	validator *validator.DocumentValidator
	converter converters.DocumentConverter
	logger    logger.Logger
	config    *ServiceConfig
}

type ServiceConfig struct {
	MaxFileSize     int64
	QueuePriority   int
	MaxConcurrent   int
	RetentionPeriod time.Duration
}

func NewService(
	pipeline Pipeline,
	q queue.Queue,
	store storage.Storage,
	log logger.Logger,
	cfg *ServiceConfig,
) *DocumentService {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = validator.DefaultMaxFileSize
	}
	if cfg.QueuePriority == 0 {
		cfg.QueuePriority = 2
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Named("document-service")

	return &DocumentService{
		pipeline:  pipeline,
		queue:     q,
		storage:   store,
		validator: validator.NewDocumentValidator(log, &validator.ValidatorConfig{MaxFileSize: cfg.MaxFileSize}),
		converter: converters.NewJSONConverter(),
		logger:    log,
		config:    cfg,
	}
}

// Extract 同步提取上传文件的文本
// The returned error is set only when the upload cannot be read at all.
func (s *DocumentService) Extract(ctx context.Context, header *multipart.FileHeader) (models.ExtractionResult, error) {
	file, err := s.readUpload(header)
	if IsRejection(err) {
		return models.Failed(err), nil
	}
	if err != nil {
		return models.ExtractionResult{}, err
	}
	return s.pipeline.ExtractText(ctx, file), nil
}

// ExtractAndParse 同步提取并解析简历
func (s *DocumentService) ExtractAndParse(ctx context.Context, header *multipart.FileHeader) (models.ParseOutcome, error) {
	file, err := s.readUpload(header)
	if IsRejection(err) {
		return models.ParseOutcome{Extraction: models.Failed(err)}, nil
	}
	if err != nil {
		return models.ParseOutcome{}, err
	}
	return s.pipeline.ExtractAndParse(ctx, file), nil
}

// IsRejection reports whether err is an input-gate rejection rather than an I/O failure.
func IsRejection(err error) bool {
	var ee *models.ExtractError
	return errors.As(err, &ee) && ee.Kind == models.KindInvalidInput
}

func (s *DocumentService) readUpload(header *multipart.FileHeader) (models.File, error) {
	if header == nil {
		return models.File{}, errors.New("no file uploaded")
	}
	res, err := s.validator.ValidateFile(header)
	if err != nil {
		return models.File{}, err
	}
	if !res.IsValid {
		return res.File, res.FirstError()
	}
	return res.File, nil
}

// ProcessFile 校验上传文件, 存储后加入提取队列
func (s *DocumentService) ProcessFile(
	ctx context.Context,
	header *multipart.FileHeader,
	opts JobOptions,
) (*models.ProcessingTask, error) {
	s.logger.Info("Starting file processing",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
	)

	file, err := s.readUpload(header)
	if err != nil {
		return nil, err
	}

	priority := opts.Priority
	if priority == 0 {
		priority = s.config.QueuePriority
	}

	taskID := uuid.New().String()
	now := time.Now()
	task := &models.ProcessingTask{
		ID:        taskID,
		Status:    models.StatusPending,
		Type:      queue.TaskTypeResumeExtract,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: map[string]string{
			"filename": header.Filename,
			"size":     strconv.FormatInt(file.Size, 10),
			"type":     filepath.Ext(header.Filename),
			"mimeType": file.MimeType,
			"parse":    strconv.FormatBool(opts.Parse),
		},
	}

	// 存储文件
	fileID, err := s.storage.Store(ctx, bytes.NewReader(file.Data), uploadKey(taskID, header.Filename))
	if err != nil {
		s.logger.Error("Failed to store file",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	queueTask := &queue.Task{
		ID:       taskID,
		Type:     task.Type,
		Priority: task.Priority,
		Payload: map[string]interface{}{
			"fileId": fileID,
			"parse":  opts.Parse,
		},
		Metadata:  task.Metadata,
		CreatedAt: task.CreatedAt,
	}

	if err := s.queue.Enqueue(ctx, queueTask); err != nil {
		s.logger.Error("Failed to enqueue task",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	// 保存初始状态
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    taskID,
		Status:    string(models.StatusPending),
		StartedAt: now,
	})

	s.logger.Info("File processing task created",
		logger.String("taskId", taskID),
		logger.String("filename", header.Filename),
	)
	return task, nil
}

// ProcessBatch 批量处理文件, 返回的任务顺序与输入一致
func (s *DocumentService) ProcessBatch(ctx context.Context, files []*multipart.FileHeader, opts JobOptions) ([]*models.ProcessingTask, error) {
	tasks := make([]*models.ProcessingTask, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)

	for i, header := range files {
		i, header := i, header
		g.Go(func() error {
			task, err := s.ProcessFile(ctx, header, opts)
			if err != nil {
				return fmt.Errorf("failed to process file %s: %w", header.Filename, err)
			}
			mu.Lock()
			tasks[i] = task
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return compact(tasks), err
	}
	return tasks, nil
}

func compact(tasks []*models.ProcessingTask) []*models.ProcessingTask {
	out := tasks[:0]
	for _, t := range tasks {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// HandleDocument 执行提取任务并保存结果
// Extraction failures are final results, only infrastructure errors are returned.
func (s *DocumentService) HandleDocument(ctx context.Context, task *queue.Task) error {
	if task == nil || task.Payload == nil || task.Metadata == nil {
		return fmt.Errorf("invalid task: missing required data")
	}
	fileID, _ := task.Payload["fileId"].(string)
	if fileID == "" {
		return fmt.Errorf("invalid task %s: missing fileId", task.ID)
	}
	parse, _ := task.Payload["parse"].(bool)

	log := logger.FromContext(ctx, s.logger).With(logger.String("taskId", task.ID))
	log.Info("Processing document", logger.String("filename", task.Metadata["filename"]))

	start := time.Now()
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    string(models.StatusRunning),
		Progress:  0.1,
		StartedAt: start,
	})

	reader, err := s.storage.Get(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(reader, s.config.MaxFileSize+1))
	reader.Close()
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	file := models.NewFile(task.Metadata["filename"], task.Metadata["mimeType"], data)
	var outcome models.ParseOutcome
	if parse {
		outcome = s.pipeline.ExtractAndParse(ctx, file)
	} else {
		outcome.Extraction = s.pipeline.ExtractText(ctx, file)
	}
	if err := ctx.Err(); err != nil {
		s.saveStatus(context.WithoutCancel(ctx), &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     string(models.StatusCancelled),
			Error:      outcome.Extraction.Error,
			StartedAt:  start,
			FinishedAt: time.Now(),
		})
		return fmt.Errorf("extraction interrupted: %w", err)
	}

	size, _ := strconv.ParseInt(task.Metadata["size"], 10, 64)
	doc, err := s.converter.Convert(outcome, converters.FileInfo{
		Name: task.Metadata["filename"],
		Type: task.Metadata["type"],
		Size: size,
	})
	if err != nil {
		return fmt.Errorf("failed to convert document: %w", err)
	}
	doc.TaskID = task.ID
	doc.Metadata.ProcessingMs = time.Since(start).Milliseconds()

	resultData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if _, err := s.storage.Store(ctx, bytes.NewReader(resultData), resultKey(task.ID)); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	final := &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     string(models.StatusCompleted),
		Progress:   1.0,
		StartedAt:  start,
		FinishedAt: time.Now(),
	}
	if !outcome.Extraction.Success {
		final.Status = string(models.StatusFailed)
		final.Error = outcome.Extraction.Error
	}
	s.saveStatus(ctx, final)

	log.Info("Document processing completed",
		logger.String("status", final.Status),
		logger.String("method", string(outcome.Extraction.Method())),
		logger.Int("sections", len(doc.Content)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// GetProcessingStatus 获取处理状态
func (s *DocumentService) GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	return &models.ProcessingTask{
		ID:        status.TaskID,
		Status:    models.ParseProcessingStatus(status.Status),
		Type:      queue.TaskTypeResumeExtract,
		Progress:  status.Progress,
		Error:     status.Error,
		Metadata:  make(map[string]string),
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

// GetProcessedDocument 获取处理结果, 提取失败的任务同样返回诊断结果
func (s *DocumentService) GetProcessedDocument(ctx context.Context, taskID string) (*converters.ProcessedDocument, error) {
	status, err := s.GetProcessingStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	switch status.Status {
	case models.StatusCompleted, models.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: %s", ErrTaskNotReady, status.Status)
	}

	reader, err := s.storage.Get(ctx, resultKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	defer reader.Close()

	var result converters.ProcessedDocument
	if err := json.NewDecoder(reader).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}

// CancelTask 取消任务
func (s *DocumentService) CancelTask(ctx context.Context, taskID string) error {
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:     taskID,
		Status:     string(models.StatusCancelled),
		FinishedAt: time.Now(),
	})

	s.logger.Info("Task cancelled", logger.String("taskId", taskID))
	return nil
}

// CleanupTasks 清理过期的上传文件和结果
func (s *DocumentService) CleanupTasks(ctx context.Context) error {
	if s.config.RetentionPeriod <= 0 {
		return nil
	}
	threshold := time.Now().Add(-s.config.RetentionPeriod)
	if err := s.storage.CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}

	s.logger.Info("Completed tasks cleanup", logger.Time("threshold", threshold))
	return nil
}

func (s *DocumentService) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		s.logger.Error("Failed to save task status",
			logger.String("taskId", status.TaskID),
			logger.String("status", status.Status),
			logger.Error(err),
		)
	}
}

func uploadKey(taskID, filename string) string {
	return "uploads/" + taskID + "/" + filepath.Base(filename)
}

func resultKey(taskID string) string {
	return "result:" + taskID
}
