package middleware

import (
	"net/http"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuditDenied records every request an authenticated actor was forbidden
// from making. Audit failures are logged and never change the response.
func AuditDenied(recorder ports.AuditRecorder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() != http.StatusForbidden {
			return
		}
		actor, ok := ActorFrom(c)
		if !ok {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		err := recorder.RecordStandalone(c.Request.Context(), ports.AuditEntry{
			ActorID:      actor.AccountID,
			Action:       domain.AuditActionAccessDenied,
			TargetEntity: "route",
			TargetID:     c.Request.Method + " " + route,
			Detail: map[string]any{
				"role":      string(actor.Role),
				"client_ip": c.ClientIP(),
			},
		})
		if err != nil {
			log.Warn().Err(err).Str("route", route).Msg("failed to record access denial")
		}
	}
}
