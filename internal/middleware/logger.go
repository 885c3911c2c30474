package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/david-solomon-henshaw/MedAppV1/internal/handler"
)

// Logger returns a middleware that logs HTTP requests. Bodies are never
// logged since they carry passwords and OTP codes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		msg := "Request processed"
		switch {
		case status >= 500:
			event = log.Error()
			msg = "Server error"
		case status >= 400:
			event = log.Warn()
			msg = "Client error"
		}

		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}
		if id, role, ok := handler.CurrentUser(c); ok {
			event = event.Str("user_id", id.String()).Str("role", string(role))
		}

		event.
			Str("request_id", c.GetString(handler.ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("user_agent", c.Request.UserAgent()).
			Msg(msg)
	}
}
