package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// sprintf avoids formatting work when there are no args.
func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// RequestID tags every request with an X-Request-ID (honoring one the
// client supplied) so gateway and backend log lines correlate.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"durationMs", time.Since(start).Milliseconds(),
			"requestId", c.GetString("requestID"),
		)
	}
}

// Recovery converts panics into the standard failure envelope instead of
// tearing the connection down. Truly exceptional conditions become a
// generic 500; the process keeps serving.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("handler panicked",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"requestId", c.GetString("requestID"),
		)
		fail(c, http.StatusInternalServerError, "internal gateway error")
	})
}
