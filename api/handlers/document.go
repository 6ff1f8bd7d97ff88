package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/resume-extractor/internal/service/document"
	"github.com/feichai0017/resume-extractor/internal/utils/validator"
	"github.com/feichai0017/resume-extractor/pkg/logger"
	"github.com/feichai0017/resume-extractor/pkg/queue"
)

type DocumentHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

// ProcessResponse 定义处理响应结构
type ProcessResponse struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	FileType  string `json:"fileType"`
	CreatedAt string `json:"createdAt"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func NewDocumentHandler(service document.DocumentProcessor, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  log,
	}
}

// jobOptions reads ?parse=true&priority=1 from the request.
func jobOptions(c *gin.Context) document.JobOptions {
	parse, _ := strconv.ParseBool(c.Query("parse"))
	priority, _ := strconv.Atoi(c.Query("priority"))
	return document.JobOptions{Parse: parse, Priority: priority}
}

// ProcessDocument 提交单个文档提取任务
func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}

	task, err := h.service.ProcessFile(c.Request.Context(), header, jobOptions(c))
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to process file", err)
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Filename:  header.Filename,
		FileSize:  header.Size,
		FileType:  filepath.Ext(header.Filename),
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	})
}

// ProcessBatch 批量提交文档
func (h *DocumentHandler) ProcessBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	tasks, err := h.service.ProcessBatch(c.Request.Context(), files, jobOptions(c))
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to process files", err)
		return
	}

	responses := make([]ProcessResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = ProcessResponse{
			TaskID:    task.ID,
			Status:    string(task.Status),
			Filename:  task.Metadata["filename"],
			FileSize:  files[i].Size,
			FileType:  task.Metadata["type"],
			CreatedAt: task.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Processing %d documents", len(files)),
		"tasks":   responses,
	})
}

// GetStatus 获取处理状态
func (h *DocumentHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	task, err := h.service.GetProcessingStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":    task.ID,
		"status":    string(task.Status),
		"progress":  task.Progress,
		"error":     task.Error,
		"metadata":  task.Metadata,
		"createdAt": task.CreatedAt.Format(time.RFC3339),
		"updatedAt": task.UpdatedAt.Format(time.RFC3339),
	})
}

// DownloadResult 下载处理结果
func (h *DocumentHandler) DownloadResult(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	result, err := h.service.GetProcessedDocument(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to get result", err)
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to serialize result", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=result_%s.json", taskID))
	c.Data(http.StatusOK, "application/json", resultJSON)
}

// CancelTask 取消处理任务
func (h *DocumentHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, statusFor(err), "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

func statusFor(err error) int {
	switch {
	case document.IsRejection(err):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrTaskNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError 统一错误处理
func (h *DocumentHandler) handleError(c *gin.Context, status int, message string, err error) {
	handleError(c, h.logger, status, message, err)
}

func handleError(c *gin.Context, log logger.Logger, status int, message string, err error) {
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), log).Error(message, fields...)
	} else {
		logger.FromContext(c.Request.Context(), log).Warn(message, fields...)
	}

	response := ErrorResponse{
		Message: message,
		Code:    validator.CodeOf(err),
	}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}
