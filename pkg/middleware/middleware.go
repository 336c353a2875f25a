package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookflow/internal/constants"
	"bookflow/internal/logger"
	"bookflow/pkg/errors"
)

const requestIDHeader = "X-Request-ID"

// AccessLog writes one line per request. Server errors are logged at error level.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		target := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			target += "?" + c.Request.URL.RawQuery
		}
		status := c.Writer.Status()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", target,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(constants.ContextKeyRequestID),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, "error", msg)
		}

		if status >= http.StatusInternalServerError {
			log.ErrorwCtx(c.Request.Context(), "request failed", fields...)
			return
		}
		log.InfowCtx(c.Request.Context(), "request served", fields...)
	}
}

// Recover turns a handler panic into the standard INTERNAL_ERROR body.
func Recover(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.ErrorwCtx(c.Request.Context(), "handler panicked",
			"panic", fmt.Sprint(recovered),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errors.ToErrorResponse(errors.ErrInternal))
	})
}

// RequestID propagates X-Request-ID, minting one when the caller did not send it,
// and stores it together with the client IP on the request context for auditing.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(constants.ContextKeyRequestID, id)
		c.Header(requestIDHeader, id)

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, id)
		ctx = context.WithValue(ctx, constants.ContextKeyClientIP, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
