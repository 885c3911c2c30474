package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/david-solomon-henshaw/MedAppV1/internal/service/audit"
)

// AuditContext copies the client IP into the request context so action log
// entries written by services carry it.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
