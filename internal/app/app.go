// Package app wires configuration into the concrete stores, broker and
// notifier shared by the api, worker and medctl binaries.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/david-solomon-henshaw/MedAppV1/internal/config"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository/memory"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository/postgres"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/mailer"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/messaging"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/messaging/kafka"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/messaging/redis"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

// NewLogger builds the application logger and points the global zerolog
// logger, used by the HTTP middleware, at the same sink.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level: logger.ParseLevel(cfg.Level),
		JSON:  cfg.JSON,
	})
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Level))
	if cfg.JSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return l
}

type Stores struct {
	Admins       repository.AdminRepository
	Patients     repository.PatientRepository
	Caregivers   repository.CaregiverRepository
	Appointments repository.AppointmentRepository
	Analytics    repository.AnalyticsRepository
	Audit        repository.AuditRepository

	// DB is nil for the memory driver.
	DB *sqlx.DB
}

// Accounts returns the role stores for authentication and OTP sweeping.
func (s *Stores) Accounts() []repository.AccountRepository {
	return []repository.AccountRepository{s.Admins, s.Patients, s.Caregivers}
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStores connects the configured storage driver. With migrate set the
// postgres schema is applied first.
func OpenStores(ctx context.Context, cfg *config.Config, migrate bool) (*Stores, error) {
	switch cfg.Storage.Driver {
	case "memory":
		mem := memory.NewStore()
		return &Stores{
			Admins:       mem.Admins(),
			Patients:     mem.Patients(),
			Caregivers:   mem.Caregivers(),
			Appointments: mem.Appointments(),
			Analytics:    mem.Analytics(),
			Audit:        mem.Audit(),
		}, nil

	case "postgres":
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &Stores{
			Admins:       postgres.NewAdminRepository(db),
			Patients:     postgres.NewPatientRepository(db),
			Caregivers:   postgres.NewCaregiverRepository(db),
			Appointments: postgres.NewAppointmentRepository(db),
			Analytics:    postgres.NewAnalyticsRepository(db),
			Audit:        postgres.NewAuditRepository(db),
			DB:           db,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewBroker connects the configured event broker. The "none" driver drops
// every event.
func NewBroker(ctx context.Context, cfg config.BrokerConfig, l *logger.Logger) (messaging.Broker, error) {
	switch cfg.Driver {
	case "redis":
		return redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.URL,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
		}, l.Zerolog())
	case "kafka":
		return kafka.NewKafkaBroker(kafka.Config{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
		}, l.Zerolog())
	case "none", "":
		return messaging.NopBroker{}, nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Driver)
	}
}

// NewNotifier builds the email notification service. In development without
// an SMTP host only recipients and subjects are logged.
func NewNotifier(cfg *config.Config, m *metrics.Metrics, l *logger.Logger) (*notification.Service, error) {
	var sender mailer.Sender
	if cfg.SMTP.Host == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("smtp.host is required when env is %q", cfg.Env)
		}
		l.Warn("smtp.host is not set, emails will not be delivered")
		sender = mailer.NewLogSender(l.Zerolog())
	} else {
		smtp, err := mailer.NewSMTPSender(mailer.Config{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			From:               cfg.SMTP.From,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})
		if err != nil {
			return nil, err
		}
		sender = smtp
	}

	return notification.NewService(sender, notification.Config{
		RetryAttempts:   cfg.Notification.RetryAttempts,
		RetryDelay:      cfg.Notification.RetryDelay,
		BreakerFailures: cfg.Notification.BreakerFailures,
		BreakerTimeout:  cfg.Notification.BreakerTimeout,
	}, m, l), nil
}
