package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/apiforge/forge/backend/internal/shared/id"
)

// RequestIDKey is the gin context key carrying the request id.
const RequestIDKey = "request_id"

// RequestID tags every request with a fresh id, echoed in X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := id.NewRequestID().String()
		c.Set(RequestIDKey, reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Next()
	}
}
