package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates X-Request-ID, generating one when the caller did
// not send it, and stores a child logger tagged with it.
func RequestID(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Header(requestIDHeader, requestID)
		c.Set(ContextKeyRequestID, requestID)
		c.Set(ContextKeyLogger, logger.With(zap.String("request_id", requestID)))
		c.Next()
	}
}

// Logger returns the request-scoped logger, or fallback when RequestID
// did not run.
func Logger(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if val, ok := c.Get(ContextKeyLogger); ok {
		if l, ok := val.(*zap.Logger); ok {
			return l
		}
	}
	return fallback
}

// AccessLog writes one line per request once it completes.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		Logger(c, logger).Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
