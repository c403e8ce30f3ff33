// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"medcore/internal/core/apperror"
	"medcore/pkg/logger"
)

// Recovery middleware recovers from panics and returns 500 error.
// It is the outermost middleware, so the panic has already unwound past
// ErrorHandler and the envelope is written here.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"error", rec,
				"stack", string(debug.Stack()),
			)
			_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", rec)))

			body := ErrorEnvelope{Error: ErrorBody{
				Code:    apperror.CodeInternal,
				Message: "Internal server error",
				Details: map[string]any{"request_id": c.GetString("request_id")},
			}}
			failIdempotency(c, http.StatusInternalServerError, body)
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
				return
			}
			c.Abort()
		}()
		c.Next()
	}
}
