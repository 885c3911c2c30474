package auth

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository/memory"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/audit"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification/notificationtest"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/auth"
	apperrors "github.com/david-solomon-henshaw/MedAppV1/pkg/errors"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/security"
)

const password = "s3cret-pass"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store    *memory.Store
	svc      *Service
	jwt      auth.JWTService
	hasher   security.PasswordHasher
	notifier *notificationtest.Recorder
	clock    *fakeClock
	hash     string
}

type fixtureOpts struct {
	order    []model.Role
	notifier notification.Notifier
	random   []byte
	wrap     func(repository.AccountRepository) repository.AccountRepository
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.NewStore(),
		hasher:   security.NewBcryptHasher(bcrypt.MinCost),
		notifier: &notificationtest.Recorder{},
		clock:    &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	var err error
	f.jwt, err = auth.NewJWTService("test-secret", "medapp", f.clock.Now)
	require.NoError(t, err)

	f.hash, err = f.hasher.Hash(password)
	require.NoError(t, err)

	stores := []repository.AccountRepository{f.store.Admins(), f.store.Patients(), f.store.Caregivers()}
	if o.wrap != nil {
		for i := range stores {
			stores[i] = o.wrap(stores[i])
		}
	}

	var notifier notification.Notifier = f.notifier
	if o.notifier != nil {
		notifier = o.notifier
	}

	opts := []Option{WithClock(f.clock.Now)}
	if o.random != nil {
		opts = append(opts, WithRandom(bytes.NewReader(o.random)))
	}

	f.svc, err = NewService(
		stores,
		f.hasher,
		f.jwt,
		notifier,
		audit.NewService(f.store.Audit(), logger.Nop()),
		metrics.NewMetrics("test", prometheus.NewRegistry()),
		logger.Nop(),
		Config{RoleOrder: o.order},
		opts...,
	)
	require.NoError(t, err)
	return f
}

func (f *fixture) addAdmin(t *testing.T, email string) *model.Account {
	t.Helper()
	a := &model.Account{FirstName: "Ada", LastName: "Admin", Email: email, PasswordHash: f.hash}
	require.NoError(t, f.store.Admins().Create(context.Background(), a))
	return a
}

func (f *fixture) addPatient(t *testing.T, email string) *model.Patient {
	t.Helper()
	p := &model.Patient{
		Account:     model.Account{FirstName: "Pat", LastName: "Patient", Email: email, PasswordHash: f.hash},
		DateOfBirth: time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
		Gender:      model.GenderFemale,
		PhoneNumber: "5551234567",
	}
	require.NoError(t, f.store.Patients().Create(context.Background(), p))
	return p
}

func (f *fixture) addCaregiver(t *testing.T, email string) *model.Caregiver {
	t.Helper()
	c := &model.Caregiver{
		Account:     model.Account{FirstName: "Cary", LastName: "Giver", Email: email, PasswordHash: f.hash},
		PhoneNumber: "5557654321",
		Department:  "cardiology",
		Available:   true,
	}
	require.NoError(t, f.store.Caregivers().Create(context.Background(), c))
	return c
}

func (f *fixture) lastCode(t *testing.T) string {
	t.Helper()
	msgs := f.notifier.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, notification.KindOTP, last.Kind)
	return last.Data.Code
}

func TestLoginResolvesRoleInPriorityOrder(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, fixtureOpts{})
	f.addAdmin(t, "shared@example.com")
	f.addPatient(t, "shared@example.com")
	f.addCaregiver(t, "carer@example.com")

	role, err := f.svc.Login(ctx, "shared@example.com", password)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, role)

	role, err = f.svc.Login(ctx, "carer@example.com", password)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCaregiver, role)

	reordered := newFixture(t, fixtureOpts{order: []model.Role{model.RolePatient, model.RoleAdmin, model.RoleCaregiver}})
	reordered.addAdmin(t, "shared@example.com")
	reordered.addPatient(t, "shared@example.com")

	role, err = reordered.svc.Login(ctx, "shared@example.com", password)
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, role)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	admin := f.addAdmin(t, "admin@example.com")

	_, err := f.svc.Login(ctx, "nobody@example.com", password)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 404, apperrors.As(err).StatusCode())

	_, err = f.svc.Login(ctx, "admin@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 401, apperrors.As(err).StatusCode())

	stored, err := f.store.Admins().GetAccount(ctx, admin.ID)
	require.NoError(t, err)
	_, _, pending := stored.PendingOTP()
	assert.False(t, pending, "a failed login must not issue an otp")
	assert.Empty(t, f.notifier.Messages())

	logs := f.store.ActionLogs()
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, model.ActionLogin, l.Action)
		assert.Equal(t, model.ActionStatusFailed, l.Status)
	}
}

func TestLoginStoresAndEmailsOTP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	p := f.addPatient(t, "pat@example.com")

	role, err := f.svc.Login(ctx, "pat@example.com", password)
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, role)

	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "pat@example.com", msgs[0].To)
	assert.Regexp(t, `^[0-9]{6}$`, msgs[0].Data.Code)

	stored, err := f.store.Patients().GetAccount(ctx, p.ID)
	require.NoError(t, err)
	code, expiresAt, ok := stored.PendingOTP()
	require.True(t, ok)
	assert.Equal(t, msgs[0].Data.Code, code)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), expiresAt)
}

func TestSecondLoginOverwritesCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{random: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}})
	f.addAdmin(t, "admin@example.com")

	_, err := f.svc.Login(ctx, "admin@example.com", password)
	require.NoError(t, err)
	first := f.lastCode(t)
	assert.Equal(t, "012345", first)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Login(ctx, "admin@example.com", password)
	require.NoError(t, err)
	second := f.lastCode(t)
	assert.Equal(t, "678901", second)

	_, err = f.svc.VerifyOTP(ctx, "admin@example.com", first)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	token, err := f.svc.VerifyOTP(ctx, "admin@example.com", second)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestVerifyOTPIssuesOneHourToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	c := f.addCaregiver(t, "carer@example.com")

	_, err := f.svc.Login(ctx, "carer@example.com", password)
	require.NoError(t, err)
	code := f.lastCode(t)

	token, err := f.svc.VerifyOTP(ctx, "carer@example.com", code)
	require.NoError(t, err)

	claims, err := f.jwt.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, c.ID.String(), claims.ID)
	assert.Equal(t, string(model.RoleCaregiver), claims.Role)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))

	// The code is single use.
	_, err = f.svc.VerifyOTP(ctx, "carer@example.com", code)
	assert.ErrorIs(t, err, ErrNoPendingOTP)

	stored, err := f.store.Caregivers().GetAccount(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.OTPCode)
	assert.Nil(t, stored.OTPExpiresAt)
}

func TestVerifyOTPChecksExpiryBeforeCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	admin := f.addAdmin(t, "admin@example.com")

	_, err := f.svc.Login(ctx, "admin@example.com", password)
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	_, err = f.svc.VerifyOTP(ctx, "admin@example.com", "not-the-code")
	assert.ErrorIs(t, err, ErrOTPExpired)

	stored, err := f.store.Admins().GetAccount(ctx, admin.ID)
	require.NoError(t, err)
	_, _, pending := stored.PendingOTP()
	assert.False(t, pending, "an observed expiry clears the slot")

	_, err = f.svc.VerifyOTP(ctx, "admin@example.com", "not-the-code")
	assert.ErrorIs(t, err, ErrNoPendingOTP)
}

func TestVerifyOTPAtExactExpiryIsAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.addAdmin(t, "admin@example.com")

	_, err := f.svc.Login(ctx, "admin@example.com", password)
	require.NoError(t, err)
	code := f.lastCode(t)

	f.clock.Advance(10 * time.Minute)
	_, err = f.svc.VerifyOTP(ctx, "admin@example.com", code)
	assert.NoError(t, err)
}

func TestVerifyOTPErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	f.addPatient(t, "pat@example.com")

	_, err := f.svc.VerifyOTP(ctx, "ghost@example.com", "123456")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.VerifyOTP(ctx, "pat@example.com", "123456")
	assert.ErrorIs(t, err, ErrNoPendingOTP)
	assert.Equal(t, 400, apperrors.As(err).StatusCode())

	_, err = f.svc.Login(ctx, "pat@example.com", password)
	require.NoError(t, err)
	code := f.lastCode(t)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = f.svc.VerifyOTP(ctx, "pat@example.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	// A mismatch leaves the pending code usable.
	_, err = f.svc.VerifyOTP(ctx, "pat@example.com", code)
	assert.NoError(t, err)
}

type failingConsume struct {
	repository.AccountRepository
}

func (failingConsume) ConsumeOTP(context.Context, uuid.UUID, string) error {
	return errors.New("connection reset")
}

func TestVerifyOTPConsumeFailureReturnsNoToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{wrap: func(r repository.AccountRepository) repository.AccountRepository {
		return failingConsume{r}
	}})
	f.addAdmin(t, "admin@example.com")

	_, err := f.svc.Login(ctx, "admin@example.com", password)
	require.NoError(t, err)

	token, err := f.svc.VerifyOTP(ctx, "admin@example.com", f.lastCode(t))
	require.Error(t, err)
	assert.Empty(t, token)
	assert.Equal(t, apperrors.ErrInternal, apperrors.As(err).Code)
}

type failingSender struct{}

func (failingSender) Send(context.Context, string, string, string) error {
	return errors.New("smtp down")
}

func TestLoginSucceedsWhenMailFails(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetrics("mail", prometheus.NewRegistry())
	f := newFixture(t, fixtureOpts{
		notifier: notification.NewService(failingSender{}, notification.Config{RetryAttempts: 1}, m, logger.Nop()),
	})
	admin := f.addAdmin(t, "admin@example.com")

	role, err := f.svc.Login(ctx, "admin@example.com", password)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, role)

	stored, err := f.store.Admins().GetAccount(ctx, admin.ID)
	require.NoError(t, err)
	_, _, pending := stored.PendingOTP()
	assert.True(t, pending)
}

func TestNewServiceRequiresEveryOrderedRole(t *testing.T) {
	store := memory.NewStore()
	_, err := NewService(
		[]repository.AccountRepository{store.Admins(), store.Patients()},
		security.NewBcryptHasher(bcrypt.MinCost),
		nil, nil, nil,
		metrics.NewMetrics("order", prometheus.NewRegistry()),
		logger.Nop(),
		Config{},
	)
	assert.Error(t, err)
}
