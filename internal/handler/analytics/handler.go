package analytics

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/david-solomon-henshaw/MedAppV1/internal/handler"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/analytics"
)

type Handler struct {
	svc *analytics.Service
}

func NewHandler(svc *analytics.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g handler.Groups) {
	rg := g.Admin.Group("/admin/analytics")
	{
		rg.GET("/dashboard", respond(h.svc.Dashboard))
		rg.GET("/appointments", respond(h.svc.Appointments))
		rg.GET("/caregivers", respond(h.svc.Caregivers))
		rg.GET("/patients", respond(h.svc.Patients))
	}
}

func respond[T any](load func(ctx context.Context) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := load(c.Request.Context())
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
