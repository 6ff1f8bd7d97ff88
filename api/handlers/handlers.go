package handlers

import (
	"github.com/feichai0017/resume-extractor/internal/agent/document"
	docservice "github.com/feichai0017/resume-extractor/internal/service/document"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
	Extract  *ExtractHandler
	OCR      *OCRHandler
	Health   *HealthHandler
}

// NewHandlers wires every handler. ocrProvider is the server-held OCR
// strategy behind POST /ocr.
func NewHandlers(
	documentService docservice.DocumentProcessor,
	ocrProvider document.Extractor,
	maxFileSize int64,
	health *HealthHandler,
	log logger.Logger,
) *Handlers {
	if log == nil {
		log = logger.NewNop()
	}
	if health == nil {
		health = NewHealthHandler()
	}
	return &Handlers{
		Document: NewDocumentHandler(documentService, log),
		Extract:  NewExtractHandler(documentService, log),
		OCR:      NewOCRHandler(ocrProvider, maxFileSize, log),
		Health:   health,
	}
}
