package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/david-solomon-henshaw/MedAppV1/internal/app"
	"github.com/david-solomon-henshaw/MedAppV1/internal/config"
	"github.com/david-solomon-henshaw/MedAppV1/internal/worker"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	l := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	stores, err := app.OpenStores(ctx, cfg, false)
	if err != nil {
		l.Fatal(err, "failed to open storage")
	}
	defer stores.Close()

	var wg sync.WaitGroup

	sweeper := worker.NewOTPSweeper(stores.Accounts(), cfg.Worker.OTPSweepInterval, cfg.Worker.OTPSweepGrace, m, l)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	if cfg.Broker.Driver != "none" && cfg.Broker.Driver != "" {
		broker, err := app.NewBroker(ctx, cfg.Broker, l)
		if err != nil {
			l.Fatal(err, "failed to connect to broker")
		}
		defer broker.Close()

		consumer := worker.NewEventConsumer(broker, cfg.Broker.Topic, m, l)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				l.Error(err, "event consumer stopped")
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if stores.DB != nil {
			pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := stores.DB.PingContext(pingCtx); err != nil {
				http.Error(w, "DOWN", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.Worker.HealthAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		l.Info("worker health server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "health server stopped")
		}
	}()

	<-ctx.Done()
	l.Info("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(err, "health server forced to shutdown")
	}
	wg.Wait()
	l.Info("worker exited")
}
