package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/resume-extractor/api/handlers"
	"github.com/feichai0017/resume-extractor/api/middleware"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, allowedOrigins []string, log logger.Logger) {
	// 全局中间件
	r.Use(middleware.RequestID(log))
	r.Use(middleware.CORS(allowedOrigins))

	v1 := r.Group("/api/v1")

	v1.GET("/health", h.Health.Health)

	// 同步提取
	v1.POST("/extract", h.Extract.Extract)
	v1.POST("/extract/parse", h.Extract.ExtractAndParse)

	// 本地 OCR 服务
	v1.POST("/ocr", h.OCR.Recognize)

	// 文档处理路由组
	docs := v1.Group("/documents")
	{
		docs.POST("/process", h.Document.ProcessDocument)
		docs.POST("/batch", h.Document.ProcessBatch)
		docs.GET("/status/:taskId", h.Document.GetStatus)
		docs.GET("/download/:taskId", h.Document.DownloadResult)
		docs.DELETE("/task/:taskId", h.Document.CancelTask)
	}
}
