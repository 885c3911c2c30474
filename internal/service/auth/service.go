package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/audit"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/auth"
	apperrors "github.com/david-solomon-henshaw/MedAppV1/pkg/errors"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/security"
)

var (
	ErrUserNotFound       = apperrors.New(apperrors.ErrNotFound, "User not found")
	ErrInvalidCredentials = apperrors.New(apperrors.ErrUnauthorized, "Invalid credentials")
	ErrNoPendingOTP       = apperrors.New(apperrors.ErrBadRequest, "No OTP request found. Please request a new OTP.")
	ErrOTPExpired         = apperrors.New(apperrors.ErrBadRequest, "OTP has expired")
	ErrInvalidOTP         = apperrors.New(apperrors.ErrBadRequest, "Invalid OTP")
)

const (
	defaultOTPTTL    = 10 * time.Minute
	defaultOTPLength = 6
)

type Config struct {
	// RoleOrder is the lookup priority across role stores. First match wins.
	RoleOrder []model.Role
	OTPTTL    time.Duration
	OTPLength int
}

type Option func(*Service)

// WithClock replaces time.Now, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom replaces crypto/rand as the OTP digit source.
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

type Service struct {
	stores   []repository.AccountRepository
	hasher   security.PasswordHasher
	jwt      auth.JWTService
	notifier notification.Notifier
	auditor  *audit.Service
	metrics  *metrics.Metrics
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
	rand     io.Reader
}

// NewService orders stores by cfg.RoleOrder. Every role in the order must
// have exactly one store.
func NewService(
	stores []repository.AccountRepository,
	hasher security.PasswordHasher,
	jwtSvc auth.JWTService,
	notifier notification.Notifier,
	auditor *audit.Service,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	if len(cfg.RoleOrder) == 0 {
		cfg.RoleOrder = model.DefaultRoleOrder
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = defaultOTPTTL
	}
	if cfg.OTPLength <= 0 {
		cfg.OTPLength = defaultOTPLength
	}

	byRole := make(map[model.Role]repository.AccountRepository, len(stores))
	for _, st := range stores {
		if _, dup := byRole[st.Role()]; dup {
			return nil, fmt.Errorf("duplicate store for role %s", st.Role())
		}
		byRole[st.Role()] = st
	}
	ordered := make([]repository.AccountRepository, 0, len(cfg.RoleOrder))
	for _, role := range cfg.RoleOrder {
		st, ok := byRole[role]
		if !ok {
			return nil, fmt.Errorf("no store configured for role %s", role)
		}
		ordered = append(ordered, st)
	}

	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		stores:   ordered,
		hasher:   hasher,
		jwt:      jwtSvc,
		notifier: notifier,
		auditor:  auditor,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// resolve walks the role stores in priority order.
func (s *Service) resolve(ctx context.Context, email string) (repository.AccountRepository, *model.Account, error) {
	email = strings.TrimSpace(email)
	for _, st := range s.stores {
		acct, err := st.GetByEmail(ctx, email)
		if err == nil {
			return st, acct, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.Internal(fmt.Errorf("failed to look up %s account: %w", st.Role(), err))
		}
	}
	return nil, nil, ErrUserNotFound
}

// Login checks the password, stores a fresh OTP on the matched account and
// emails it. Only the role is returned.
func (s *Service) Login(ctx context.Context, email, password string) (model.Role, error) {
	st, acct, err := s.resolve(ctx, email)
	if err != nil {
		s.recordFailure(ctx, model.ActionLogin, "", email, err)
		return "", err
	}
	role := st.Role()

	if err := s.hasher.Compare(acct.PasswordHash, password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			err = apperrors.Internal(fmt.Errorf("failed to compare password: %w", err))
		} else {
			err = ErrInvalidCredentials
		}
		s.recordFailure(ctx, model.ActionLogin, role, email, err)
		return "", err
	}

	code, expiresAt, err := s.issueOTP(ctx, st, acct.ID)
	if err != nil {
		s.recordFailure(ctx, model.ActionLogin, role, email, err)
		return "", err
	}

	s.notifier.Notify(ctx, notification.Message{
		Kind: notification.KindOTP,
		To:   acct.Email,
		Data: notification.Data{
			Name:       acct.FullName(),
			Code:       code,
			TTLMinutes: int(s.cfg.OTPTTL / time.Minute),
		},
	})

	s.metrics.LoginAttempts.WithLabelValues(string(role), "success").Inc()
	s.auditor.Record(ctx, audit.Entry{
		UserID:      &acct.ID,
		UserRole:    role,
		Action:      model.ActionLogin,
		Description: "OTP issued",
		Entity:      string(role),
		EntityID:    &acct.ID,
		Metadata:    map[string]interface{}{"otpExpiresAt": expiresAt},
	})
	return role, nil
}

// VerifyOTP exchanges a pending code for a session token. Expiry is checked
// before equality, and an expired slot is cleared.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	st, acct, err := s.resolve(ctx, email)
	if err != nil {
		s.recordFailure(ctx, model.ActionVerifyOTP, "", email, err)
		return "", err
	}
	role := st.Role()

	stored, expiresAt, ok := acct.PendingOTP()
	if !ok {
		s.recordFailure(ctx, model.ActionVerifyOTP, role, email, ErrNoPendingOTP)
		return "", ErrNoPendingOTP
	}

	if s.now().After(expiresAt) {
		if err := st.ClearOTP(ctx, acct.ID); err != nil {
			s.log.Error(err, "failed to clear expired otp", "role", role, "account_id", acct.ID.String())
		}
		s.recordFailure(ctx, model.ActionVerifyOTP, role, email, ErrOTPExpired)
		return "", ErrOTPExpired
	}

	if !security.EqualCodes(stored, strings.TrimSpace(code)) {
		s.recordFailure(ctx, model.ActionVerifyOTP, role, email, ErrInvalidOTP)
		return "", ErrInvalidOTP
	}

	token, err := s.jwt.Issue(acct.ID, string(role))
	if err != nil {
		err = apperrors.Internal(err)
		s.recordFailure(ctx, model.ActionVerifyOTP, role, email, err)
		return "", err
	}

	if err := st.ConsumeOTP(ctx, acct.ID, stored); err != nil {
		// A conflict means another verify or a newer login replaced the code.
		if errors.Is(err, repository.ErrConflict) {
			err = ErrInvalidOTP
		} else {
			err = apperrors.Internal(fmt.Errorf("failed to consume otp: %w", err))
		}
		s.recordFailure(ctx, model.ActionVerifyOTP, role, email, err)
		return "", err
	}

	s.metrics.OTPVerifications.WithLabelValues("success").Inc()
	s.auditor.Record(ctx, audit.Entry{
		UserID:      &acct.ID,
		UserRole:    role,
		Action:      model.ActionVerifyOTP,
		Description: "OTP verified",
		Entity:      string(role),
		EntityID:    &acct.ID,
	})
	return token, nil
}

func (s *Service) recordFailure(ctx context.Context, action string, role model.Role, email string, err error) {
	label := string(role)
	if label == "" {
		label = "unknown"
	}
	result := "failed"
	if appErr := apperrors.As(err); appErr.Code == apperrors.ErrInternal {
		result = "error"
		s.log.Error(err, "authentication failed", "action", action, "role", label)
	}

	switch action {
	case model.ActionLogin:
		s.metrics.LoginAttempts.WithLabelValues(label, result).Inc()
	case model.ActionVerifyOTP:
		s.metrics.OTPVerifications.WithLabelValues(result).Inc()
	}

	s.auditor.Record(ctx, audit.Entry{
		UserRole: role,
		Action:   action,
		Entity:   model.EntityError,
		Err:      err,
		Metadata: map[string]string{"email": email},
	})
}
