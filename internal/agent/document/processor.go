package document

import (
	"context"

	"github.com/feichai0017/resume-extractor/internal/models"
)

// Extractor 文本提取策略接口
type Extractor interface {
	// Name 返回策略名, 用于日志
	Name() string

	// Extract 提取文本. 失败也通过 ExtractionResult 返回, 不会 panic
	Extract(ctx context.Context, file models.File) models.ExtractionResult
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, file models.File) models.ExtractionResult

func (f ExtractorFunc) Name() string { return "func" }

func (f ExtractorFunc) Extract(ctx context.Context, file models.File) models.ExtractionResult {
	return f(ctx, file)
}
