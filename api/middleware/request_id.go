package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feichai0017/resume-extractor/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates or assigns a request ID and logs each request.
func RequestID(log logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		logger.FromContext(c.Request.Context(), log).Info("Request handled",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("elapsed", time.Since(start)),
		)
	}
}
