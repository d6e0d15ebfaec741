package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/scribe/common/logger"
)

// RoomFields adds the :room_id path parameter to the request's log fields.
func RoomFields() gin.HandlerFunc {
	return func(c *gin.Context) {
		if roomID := c.Param("room_id"); roomID != "" {
			ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
				RoomID:    logger.Ptr(roomID),
				Component: "scribe.http",
			})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// TraceHeader echoes the active trace id in the named response header so
// clients can quote it when reporting problems.
func TraceHeader(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if name != "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				c.Header(name, sc.TraceID().String())
			}
		}
		c.Next()
	}
}
