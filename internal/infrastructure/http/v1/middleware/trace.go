package middleware

import (
	"github.com/gin-gonic/gin"

	"docstitch/internal/core/reqctx"
)

// HeaderRequestID propagates the request id between services.
const HeaderRequestID = "X-Request-ID"

// Trace middleware attaches a request id to the context and echoes it back
// in the response headers.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = reqctx.NewRequestID()
		}

		ctx := reqctx.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()
	}
}
