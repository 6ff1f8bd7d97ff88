package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/resume-extractor/internal/agent/document"
	"github.com/feichai0017/resume-extractor/internal/agent/document/ocr"
	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/internal/utils/validator"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// OCRHandler is the server side of the local OCR service. It runs the
// server-held OCR provider so clients never see the API key.
type OCRHandler struct {
	provider  document.Extractor
	validator *validator.DocumentValidator
	logger    logger.Logger
}

func NewOCRHandler(provider document.Extractor, maxFileSize int64, log logger.Logger) *OCRHandler {
	return &OCRHandler{
		provider:  provider,
		validator: validator.NewDocumentValidator(log, &validator.ValidatorConfig{MaxFileSize: maxFileSize}),
		logger:    log,
	}
}

// Recognize answers 400 for rejected input, 200 with text, 422 when OCR failed.
func (h *OCRHandler) Recognize(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ocr.NewLocalResponse(models.Failed(
			models.InvalidInputError(validator.CodeUnreadable, "missing multipart field \"file\""))))
		return
	}

	v, err := h.validator.ValidateFile(header)
	if err != nil {
		c.JSON(http.StatusBadRequest, ocr.NewLocalResponse(models.Failed(
			models.InvalidInputError(validator.CodeUnreadable, err.Error()))))
		return
	}
	if !v.IsValid {
		c.JSON(http.StatusBadRequest, ocr.NewLocalResponse(models.Failed(v.FirstError())))
		return
	}

	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, ocr.NewLocalResponse(models.Failed(
			models.NewExtractError(models.KindTransport, "OCR provider not configured", nil))))
		return
	}

	res := h.provider.Extract(c.Request.Context(), v.File)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
		logger.FromContext(c.Request.Context(), h.logger).Warn("OCR request failed",
			logger.String("file", header.Filename),
			logger.String("error", res.Error),
		)
	}
	c.JSON(status, ocr.NewLocalResponse(res))
}
