package middlewares

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into a 500 with the standard error envelope.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", rec,
					"route", c.FullPath(),
					"request_id", RequestIDFromContext(c),
					"stack", string(debug.Stack()),
				)
				abortWithError(c, http.StatusInternalServerError, "internal_error", "Something went wrong")
			}
		}()
		c.Next()
	}
}
