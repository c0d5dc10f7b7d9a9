package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// LoggerFromContext prefers the per-request logger set by middleware.RequestLogger.
func LoggerFromContext(c *gin.Context) *zap.Logger {
	if l, ok := c.Get("logger"); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return GetLogger()
}

// ErrorHandler turns a panic in a handler into a 500 with the standard body.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				LoggerFromContext(c).Error("Unhandled panic",
					zap.Any("panic", rec),
					zap.String("method", c.Request.Method),
					zap.String("path", c.FullPath()),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Code:    "INTERNAL",
					Message: "Internal Server Error",
				})
			}
		}()
		c.Next()
	}
}

// JSONError aborts the request with a structured error body. Client errors log
// at warn, server-side ones at error.
func JSONError(c *gin.Context, status int, code, message, details string) {
	fields := []zap.Field{zap.Int("status", status), zap.String("code", code)}
	if details != "" {
		fields = append(fields, zap.String("details", details))
	}
	if status >= http.StatusInternalServerError {
		LoggerFromContext(c).Error(message, fields...)
	} else {
		LoggerFromContext(c).Warn(message, fields...)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message, Details: details})
}
