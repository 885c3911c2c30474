package router

import (
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/david-solomon-henshaw/MedAppV1/internal/handler"
	"github.com/david-solomon-henshaw/MedAppV1/internal/middleware"
	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(handler.Groups)
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	limiter  *middleware.RateLimiter
	metrics  *metrics.Metrics
	handlers []Handler
}

type RouterConfig struct {
	RateLimit   middleware.RateLimiterConfig
	CORSOrigins []string
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	m *metrics.Metrics,
	config RouterConfig,
	handlers ...Handler,
) (*Router, error) {
	if err := handler.RegisterValidations(); err != nil {
		return nil, err
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		limiter:  middleware.NewRateLimiter(config.RateLimit),
		metrics:  m,
		handlers: handlers,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		r.metricsMiddleware(),
		middleware.CORS(middleware.DefaultCORSConfig(config.CORSOrigins)),
		gzip.Gzip(gzip.BestSpeed),
		middleware.AuditContext(),
	)
	return r, nil
}

// Setup mounts every handler under /api/v1. Public routes are rate limited
// per client IP; the role groups require a session with that role.
func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	authed := func(role model.Role) *gin.RouterGroup {
		return api.Group("", r.auth.Authenticate(), middleware.RequireRole(role))
	}

	groups := handler.Groups{
		API:       api,
		Public:    api.Group("", r.limiter.RateLimit()),
		Admin:     authed(model.RoleAdmin),
		Patient:   authed(model.RolePatient),
		Caregiver: authed(model.RoleCaregiver),
	}
	for _, h := range r.handlers {
		h.RegisterRoutes(groups)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			errType := "client"
			if c.Writer.Status() >= 500 {
				errType = "server"
			}
			r.metrics.ErrorTotal.WithLabelValues(c.Request.Method, path, errType).Inc()
		}
	}
}
