package relay

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omochice/counsel-chat/internal/log"
)

const (
	headerRequestID = "X-Request-ID"

	fieldRequestID = "request_id"
	fieldClientIP  = "client_ip"
)

// requestLogger logs every HTTP request once it completes. The request id is
// taken from X-Request-ID when present and echoed back, and the tagged logger
// is put in the request context for handlers.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)

		reqLogger := logger.With().
			Str(fieldRequestID, id).
			Str(log.FieldMethod, c.Request.Method).
			Str(log.FieldPath, c.Request.URL.Path).
			Str(fieldClientIP, c.ClientIP()).
			Logger()
		c.Request = c.Request.WithContext(log.WithLogger(c.Request.Context(), reqLogger))

		c.Next()

		// Upgraded WebSocket requests are logged by their client instead.
		if c.IsWebsocket() {
			return
		}
		reqLogger.Info().
			Int(log.FieldStatus, c.Writer.Status()).
			Int64(log.FieldLatency, time.Since(start).Milliseconds()).
			Msg("request completed")
	}
}
