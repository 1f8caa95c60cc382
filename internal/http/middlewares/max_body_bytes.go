package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps request bodies at max. perRoute overrides the cap for
// specific route templates, such as the spreadsheet upload.
func MaxBodyBytes(max int64, perRoute map[string]int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		switch ctx.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			ctx.Next()
			return
		}

		limit := max
		if v, ok := perRoute[ctx.FullPath()]; ok {
			limit = v
		}

		// declared lengths are rejected up front; chunked bodies hit the reader cap
		if ctx.Request.ContentLength > limit {
			abortWithError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large.")
			return
		}
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)

		ctx.Next()
	}
}
