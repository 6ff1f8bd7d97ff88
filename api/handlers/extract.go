package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/resume-extractor/internal/service/document"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// ExtractHandler runs the extraction cascade synchronously.
type ExtractHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

func NewExtractHandler(service document.DocumentProcessor, log logger.Logger) *ExtractHandler {
	return &ExtractHandler{service: service, logger: log}
}

// Extract returns the ExtractionResult with 200, failures included.
func (h *ExtractHandler) Extract(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Invalid file upload", err)
		return
	}

	res, err := h.service.Extract(c.Request.Context(), header)
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Unreadable file upload", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ExtractAndParse adds the structured resume fields when available.
func (h *ExtractHandler) ExtractAndParse(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Invalid file upload", err)
		return
	}

	out, err := h.service.ExtractAndParse(c.Request.Context(), header)
	if err != nil {
		handleError(c, h.logger, http.StatusBadRequest, "Unreadable file upload", err)
		return
	}
	c.JSON(http.StatusOK, out)
}
