package document

import (
	"context"
	"mime/multipart"

	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/pkg/converters"
	"github.com/feichai0017/resume-extractor/pkg/queue"
)

// Pipeline runs the extraction cascade on an in-memory file.
// *extraction.Orchestrator satisfies it.
type Pipeline interface {
	ExtractText(ctx context.Context, file models.File) models.ExtractionResult
	ExtractAndParse(ctx context.Context, file models.File) models.ParseOutcome
}

// JobOptions 异步任务选项
type JobOptions struct {
	Parse    bool
	Priority int
}

type DocumentProcessor interface {
	Extract(ctx context.Context, header *multipart.FileHeader) (models.ExtractionResult, error)
	ExtractAndParse(ctx context.Context, header *multipart.FileHeader) (models.ParseOutcome, error)
	ProcessFile(ctx context.Context, header *multipart.FileHeader, opts JobOptions) (*models.ProcessingTask, error)
	ProcessBatch(ctx context.Context, files []*multipart.FileHeader, opts JobOptions) ([]*models.ProcessingTask, error)
	GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error)
	HandleDocument(ctx context.Context, task *queue.Task) error
	GetProcessedDocument(ctx context.Context, taskID string) (*converters.ProcessedDocument, error)
	CancelTask(ctx context.Context, taskID string) error
	CleanupTasks(ctx context.Context) error
}
