package converters

import (
	"fmt"
	"strings"
	"time"

	"github.com/feichai0017/resume-extractor/internal/models"
)

// DocumentConverter 定义结果转换器接口
type DocumentConverter interface {
	Convert(outcome models.ParseOutcome, info FileInfo) (*ProcessedDocument, error)
}

// FileInfo describes the uploaded file a job processed.
type FileInfo struct {
	Name string
	Type string
	Size int64
}

// ProcessedDocument 定义异步任务的结果文档
type ProcessedDocument struct {
	TaskID      string                   `json:"taskId"`
	Status      string                   `json:"status"`
	Content     []ChunkContent           `json:"content"`
	Metadata    DocumentMetadata         `json:"metadata"`
	Extraction  models.ExtractionResult  `json:"extraction"`
	Resume      *models.ParsedResumeData `json:"resume,omitempty"`
	ParseError  string                   `json:"parseError,omitempty"`
	ProcessedAt time.Time                `json:"processedAt"`
}

// ChunkContent 定义文本段落
type ChunkContent struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
	Type     string `json:"type"`
}

// DocumentMetadata 定义文档元数据
type DocumentMetadata struct {
	FileName         string `json:"fileName"`
	FileType         string `json:"fileType"`
	FileSize         int64  `json:"fileSize"`
	PageCount        int    `json:"pageCount,omitempty"`
	ExtractionMethod string `json:"extractionMethod,omitempty"`
	UsedOCR          bool   `json:"usedOcr"`
	UserMessage      string `json:"userMessage,omitempty"`
	CharCount        int    `json:"charCount"`
	ProcessingMs     int64  `json:"processingMs"`
}

// JSONConverter 实现结果转换器
type JSONConverter struct{}

func NewJSONConverter() *JSONConverter {
	return &JSONConverter{}
}

// Convert splits the extracted text into blank-line separated sections.
func (c *JSONConverter) Convert(outcome models.ParseOutcome, info FileInfo) (*ProcessedDocument, error) {
	res := outcome.Extraction
	if res.Success && res.Text == "" {
		return nil, fmt.Errorf("successful extraction without text")
	}

	doc := &ProcessedDocument{
		Status:      "completed",
		Content:     make([]ChunkContent, 0),
		Extraction:  res,
		Resume:      outcome.Resume,
		ParseError:  outcome.ParseError,
		ProcessedAt: time.Now(),
		Metadata: DocumentMetadata{
			FileName:         info.Name,
			FileType:         info.Type,
			FileSize:         info.Size,
			PageCount:        res.PageCount,
			ExtractionMethod: string(res.Method()),
			UsedOCR:          res.UsedOCR(),
			UserMessage:      res.UserMessage(),
			CharCount:        len([]rune(res.Text)),
		},
	}
	if !res.Success {
		doc.Status = "failed"
		return doc, nil
	}

	for _, section := range strings.Split(res.Text, "\n\n") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		doc.Content = append(doc.Content, ChunkContent{
			Text:     section,
			Position: len(doc.Content) + 1,
			Type:     "section",
		})
	}
	return doc, nil
}
