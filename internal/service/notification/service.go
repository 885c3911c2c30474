package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david-solomon-henshaw/MedAppV1/pkg/circuitbreaker"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/mailer"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

type Message struct {
	Kind Kind
	To   string
	Data Data
}

// Notifier is what the domain services depend on. Notify never fails the
// caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

type Config struct {
	RetryAttempts   int
	RetryDelay      time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

type Service struct {
	sender  mailer.Sender
	breaker *circuitbreaker.CircuitBreaker
	cfg     Config
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewService(sender mailer.Sender, cfg Config, m *metrics.Metrics, log *logger.Logger) *Service {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		sender: sender,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerTimeout,
		}),
		cfg:     cfg,
		metrics: m,
		log:     log,
	}
}

// Send renders and delivers msg, retrying with linear backoff. It stops early
// when the breaker is open or ctx is done.
func (s *Service) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	defer func() {
		s.metrics.NotificationLatency.WithLabelValues(string(msg.Kind)).Observe(time.Since(start).Seconds())
	}()

	if msg.To == "" {
		s.metrics.Notifications.WithLabelValues(string(msg.Kind), "skipped").Inc()
		return errors.New("recipient is required")
	}

	subject, body, err := Render(msg.Kind, msg.Data)
	if err != nil {
		s.metrics.Notifications.WithLabelValues(string(msg.Kind), "failed").Inc()
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		lastErr = s.breaker.Execute(func() error {
			return s.sender.Send(ctx, msg.To, subject, body)
		})
		if lastErr == nil {
			s.metrics.Notifications.WithLabelValues(string(msg.Kind), "sent").Inc()
			return nil
		}
		if errors.Is(lastErr, circuitbreaker.ErrOpen) || attempt == s.cfg.RetryAttempts {
			break
		}

		s.log.Warn("notification attempt failed", "kind", msg.Kind, "attempt", attempt, "error", lastErr.Error())
		if err := wait(ctx, s.cfg.RetryDelay*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	s.metrics.Notifications.WithLabelValues(string(msg.Kind), "failed").Inc()
	return fmt.Errorf("failed to deliver %s notification: %w", msg.Kind, lastErr)
}

// Notify is Send with the error logged and dropped.
func (s *Service) Notify(ctx context.Context, msg Message) {
	if err := s.Send(ctx, msg); err != nil {
		s.log.Error(err, "notification dropped", "kind", msg.Kind, "to", msg.To)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
