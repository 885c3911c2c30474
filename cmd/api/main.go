package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/david-solomon-henshaw/MedAppV1/internal/app"
	"github.com/david-solomon-henshaw/MedAppV1/internal/config"
	accountHandler "github.com/david-solomon-henshaw/MedAppV1/internal/handler/account"
	analyticsHandler "github.com/david-solomon-henshaw/MedAppV1/internal/handler/analytics"
	appointmentHandler "github.com/david-solomon-henshaw/MedAppV1/internal/handler/appointment"
	authHandler "github.com/david-solomon-henshaw/MedAppV1/internal/handler/auth"
	"github.com/david-solomon-henshaw/MedAppV1/internal/handler/health"
	promHandler "github.com/david-solomon-henshaw/MedAppV1/internal/handler/prometheus"
	"github.com/david-solomon-henshaw/MedAppV1/internal/middleware"
	"github.com/david-solomon-henshaw/MedAppV1/internal/router"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/account"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/analytics"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/appointment"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/audit"
	authService "github.com/david-solomon-henshaw/MedAppV1/internal/service/auth"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/auth"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	l := app.NewLogger(cfg.Log)
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	stores, err := app.OpenStores(ctx, cfg, false)
	if err != nil {
		l.Fatal(err, "failed to open storage")
	}
	defer stores.Close()

	broker, err := app.NewBroker(ctx, cfg.Broker, l)
	if err != nil {
		l.Fatal(err, "failed to connect to broker")
	}
	defer broker.Close()

	notifier, err := app.NewNotifier(cfg, m, l)
	if err != nil {
		l.Fatal(err, "failed to configure mailer")
	}

	jwtSvc, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Now)
	if err != nil {
		l.Fatal(err, "failed to configure jwt")
	}
	roleOrder, err := cfg.RoleOrder()
	if err != nil {
		l.Fatal(err, "invalid role order")
	}

	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost)
	auditor := audit.NewService(stores.Audit, l)

	authSvc, err := authService.NewService(stores.Accounts(), hasher, jwtSvc, notifier, auditor, m, l, authService.Config{
		RoleOrder: roleOrder,
		OTPTTL:    cfg.Auth.OTPTTL,
		OTPLength: cfg.Auth.OTPLength,
	})
	if err != nil {
		l.Fatal(err, "failed to build auth service")
	}
	accountSvc := account.NewService(stores.Admins, stores.Patients, stores.Caregivers, stores.Appointments, hasher, auditor, l)
	analyticsSvc := analytics.NewService(stores.Analytics, cfg.Analytics.CacheTTL)
	appointmentSvc := appointment.NewService(stores.Appointments, stores.Patients, stores.Caregivers, notifier, auditor, m, l,
		appointment.WithPublisher(broker, cfg.Broker.Topic),
		appointment.WithCacheInvalidator(analyticsSvc))

	var healthHandler *health.Handler
	if stores.DB != nil {
		healthHandler = health.NewHandler(stores.DB)
	} else {
		healthHandler = health.NewHandler(nil)
	}

	r, err := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		m,
		router.RouterConfig{
			RateLimit: middleware.RateLimiterConfig{
				RPS:   cfg.RateLimit.RPS,
				Burst: cfg.RateLimit.Burst,
				TTL:   cfg.RateLimit.TTL,
			},
			CORSOrigins: cfg.Server.CORSOrigins,
		},
		healthHandler,
		promHandler.New(reg),
		authHandler.NewHandler(authSvc),
		accountHandler.NewHandler(accountSvc),
		appointmentHandler.NewHandler(appointmentSvc),
		analyticsHandler.NewHandler(analyticsSvc),
	)
	if err != nil {
		l.Fatal(err, "failed to build router")
	}
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		l.Info("starting server", "addr", srv.Addr, "storage", cfg.Storage.Driver, "broker", cfg.Broker.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(err, "server forced to shutdown")
		os.Exit(1)
	}
	l.Info("server exited")
}
