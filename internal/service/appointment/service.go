package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/audit"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification"
	apperrors "github.com/david-solomon-henshaw/MedAppV1/pkg/errors"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/keylock"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/messaging"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

// ErrInvalidTransition is wrapped by every rejected status change.
var ErrInvalidTransition = errors.New("invalid status transition")

var (
	ErrAppointmentNotFound = apperrors.New(apperrors.ErrNotFound, "Appointment not found")
	ErrCaregiverNotFound   = apperrors.New(apperrors.ErrNotFound, "Caregiver not found")
	ErrPatientNotFound     = apperrors.New(apperrors.ErrNotFound, "Patient not found")
	ErrAlreadyCancelled    = apperrors.New(apperrors.ErrBadRequest, "Appointment is already cancelled")
	ErrInvalidStatus       = apperrors.New(apperrors.ErrBadRequest, "Invalid appointment status")
	ErrCaregiverRequired   = apperrors.New(apperrors.ErrBadRequest, "A caregiver must be assigned first")
	ErrCaregiverStatus     = apperrors.New(apperrors.ErrBadRequest, "Caregivers can only set status to in-progress or completed")
	ErrNotAssigned         = apperrors.New(apperrors.ErrForbidden, "You are not assigned to this appointment")
	ErrConcurrentUpdate    = apperrors.New(apperrors.ErrConflict, "Appointment was modified concurrently, please retry")
)

const DefaultEventTopic = "appointment-events"

func terminalAppointment(status, target model.AppointmentStatus) error {
	return &apperrors.AppError{
		Code:    apperrors.ErrBadRequest,
		Message: fmt.Sprintf("Cannot modify a %s appointment", status),
		Err:     fmt.Errorf("%w: %s is terminal, requested %s", ErrInvalidTransition, status, target),
	}
}

func invalidTransition(from, to model.AppointmentStatus) error {
	return &apperrors.AppError{
		Code:    apperrors.ErrBadRequest,
		Message: fmt.Sprintf("Cannot change appointment status from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}

// Actor identifies who is driving a change.
type Actor struct {
	ID   uuid.UUID
	Role model.Role
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher publishes an AppointmentEvent to topic after every stored
// status change.
func WithPublisher(broker messaging.Broker, topic string) Option {
	return func(s *Service) {
		s.broker = broker
		if topic != "" {
			s.topic = topic
		}
	}
}

// CacheInvalidator drops cached data derived from appointments.
type CacheInvalidator interface {
	Invalidate()
}

// WithCacheInvalidator invalidates c after every stored change.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(s *Service) { s.caches = append(s.caches, c) }
}

type Service struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	caregivers   repository.CaregiverRepository
	notifier     notification.Notifier
	auditor      *audit.Service
	metrics      *metrics.Metrics
	log          *logger.Logger
	broker       messaging.Broker
	topic        string
	caches       []CacheInvalidator
	locks        *keylock.KeyLock
	now          func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	caregivers repository.CaregiverRepository,
	notifier notification.Notifier,
	auditor *audit.Service,
	m *metrics.Metrics,
	log *logger.Logger,
	opts ...Option,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		appointments: appointments,
		patients:     patients,
		caregivers:   caregivers,
		notifier:     notifier,
		auditor:      auditor,
		metrics:      m,
		log:          log,
		topic:        DefaultEventTopic,
		locks:        keylock.New(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AdminUpdate applies an admin transition request. Entering approved or
// suspended notifies the patient and the assigned caregiver. Completed and
// cancelled appointments cannot be modified.
func (s *Service) AdminUpdate(ctx context.Context, id uuid.UUID, actor Actor, upd model.AppointmentUpdate) (*model.Appointment, error) {
	var (
		apt       *model.Appointment
		caregiver *model.Caregiver
		entered   bool
	)
	err := s.withLock(id, func() error {
		var err error
		if apt, err = s.get(ctx, id); err != nil {
			return err
		}
		prior := apt.Status

		target := prior
		if upd.Status != nil {
			if !upd.Status.IsValid() {
				return ErrInvalidStatus
			}
			target = *upd.Status
		}
		if prior.IsTerminal() {
			err := terminalAppointment(prior, target)
			s.recordFailure(ctx, actor, actionFor(target), id, err)
			return err
		}

		if upd.CaregiverID != nil {
			caregiver, err = s.caregivers.Get(ctx, *upd.CaregiverID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrCaregiverNotFound
				}
				return apperrors.Internal(fmt.Errorf("failed to get caregiver: %w", err))
			}
			apt.CaregiverID = &caregiver.ID
		}
		if upd.AppointmentDate != nil {
			apt.AppointmentDate = upd.AppointmentDate
		}
		if upd.StartTime != nil {
			apt.StartTime = upd.StartTime
		}

		if entered, err = s.apply(apt, target, upd.EndTime); err != nil {
			s.recordFailure(ctx, actor, actionFor(target), id, err)
			return err
		}
		if err := s.persist(ctx, apt, prior, entered); err != nil {
			s.recordFailure(ctx, actor, actionFor(target), id, err)
			return err
		}
		if entered {
			s.afterTransition(ctx, actor, apt, prior)
		}
		s.record(ctx, actor, actionFor(apt.Status), apt, prior)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entered {
		switch apt.Status {
		case model.AppointmentStatusApproved, model.AppointmentStatusSuspended:
			s.notifyParticipants(ctx, apt, caregiver)
		}
	}
	return apt, nil
}

// Cancel moves the appointment to cancelled, or to alternate when given.
// Only the patient is notified.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, alternate *model.AppointmentStatus) (*model.Appointment, error) {
	var (
		apt     *model.Appointment
		entered bool
	)
	err := s.withLock(id, func() error {
		var err error
		if apt, err = s.get(ctx, id); err != nil {
			return err
		}
		if apt.Status == model.AppointmentStatusCancelled {
			s.recordFailure(ctx, actor, model.ActionAppointmentCancel, id, ErrAlreadyCancelled)
			return ErrAlreadyCancelled
		}
		prior := apt.Status

		target := model.AppointmentStatusCancelled
		if alternate != nil {
			if !alternate.IsValid() {
				return ErrInvalidStatus
			}
			target = *alternate
		}

		if entered, err = s.apply(apt, target, nil); err != nil {
			s.recordFailure(ctx, actor, model.ActionAppointmentCancel, id, err)
			return err
		}
		if err := s.persist(ctx, apt, prior, entered); err != nil {
			s.recordFailure(ctx, actor, model.ActionAppointmentCancel, id, err)
			return err
		}
		if entered {
			s.afterTransition(ctx, actor, apt, prior)
		}
		s.record(ctx, actor, model.ActionAppointmentCancel, apt, prior)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entered {
		if kind, ok := patientKind(apt.Status); ok {
			s.notifyPatient(ctx, apt, kind, "")
		}
	}
	return apt, nil
}

// CaregiverUpdate lets the assigned caregiver start or complete an
// appointment. endTime is used only when entering completed.
func (s *Service) CaregiverUpdate(ctx context.Context, id, caregiverID uuid.UUID, status model.AppointmentStatus, endTime *time.Time) (*model.Appointment, error) {
	actor := Actor{ID: caregiverID, Role: model.RoleCaregiver}

	if status != model.AppointmentStatusInProgress && status != model.AppointmentStatusCompleted {
		return nil, ErrCaregiverStatus
	}

	var apt *model.Appointment
	err := s.withLock(id, func() error {
		var err error
		if apt, err = s.get(ctx, id); err != nil {
			return err
		}
		if apt.CaregiverID == nil || *apt.CaregiverID != caregiverID {
			s.recordFailure(ctx, actor, model.ActionCaregiverUpdateAppointment, id, ErrNotAssigned)
			return ErrNotAssigned
		}
		prior := apt.Status

		entered, err := s.apply(apt, status, endTime)
		if err != nil {
			s.recordFailure(ctx, actor, model.ActionCaregiverUpdateAppointment, id, err)
			return err
		}
		if err := s.persist(ctx, apt, prior, entered); err != nil {
			s.recordFailure(ctx, actor, model.ActionCaregiverUpdateAppointment, id, err)
			return err
		}
		if entered {
			s.afterTransition(ctx, actor, apt, prior)
		}
		s.record(ctx, actor, model.ActionCaregiverUpdateAppointment, apt, prior)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apt, nil
}

// withLock runs fn while holding the lock for id. Notifications are sent by
// the caller once fn has returned.
func (s *Service) withLock(id uuid.UUID, fn func() error) error {
	unlock := s.locks.Lock(id.String())
	defer unlock()
	return fn()
}

// RequestAppointment creates a pending appointment for the patient and links
// it from the patient record.
func (s *Service) RequestAppointment(ctx context.Context, patientID uuid.UUID, req model.RequestAppointmentRequest) (*model.Appointment, error) {
	actor := Actor{ID: patientID, Role: model.RolePatient}

	if _, err := s.patients.Get(ctx, patientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get patient: %w", err))
	}

	apt := &model.Appointment{
		PatientID:     patientID,
		Status:        model.AppointmentStatusPending,
		Department:    req.Department,
		RequestedDate: req.RequestedDate,
		RequestedTime: req.RequestedTime,
	}
	if err := s.appointments.Create(ctx, apt); err != nil {
		err = apperrors.Internal(fmt.Errorf("failed to create appointment: %w", err))
		s.recordFailure(ctx, actor, model.ActionPatientBookAppointment, uuid.Nil, err)
		return nil, err
	}
	if err := s.patients.AppendAppointment(ctx, patientID, apt.ID); err != nil {
		err = apperrors.Internal(fmt.Errorf("failed to link appointment: %w", err))
		s.recordFailure(ctx, actor, model.ActionPatientBookAppointment, apt.ID, err)
		return nil, err
	}

	s.record(ctx, actor, model.ActionPatientBookAppointment, apt, "")
	return apt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	apts, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	if apts == nil {
		apts = []*model.Appointment{}
	}
	return apts, nil
}

func (s *Service) ListForCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*model.Appointment, error) {
	return s.List(ctx, model.AppointmentFilter{CaregiverID: &caregiverID})
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return s.List(ctx, model.AppointmentFilter{PatientID: &patientID})
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get appointment: %w", err))
	}
	return apt, nil
}

// apply moves apt to target in memory and reports whether the status
// changed. Re-applying the current status changes nothing beyond the fields
// the caller already set.
func (s *Service) apply(apt *model.Appointment, target model.AppointmentStatus, endTime *time.Time) (bool, error) {
	if target == apt.Status {
		return false, nil
	}
	if !apt.Status.CanTransitionTo(target) {
		return false, invalidTransition(apt.Status, target)
	}
	if target.RequiresCaregiver() && apt.CaregiverID == nil {
		return false, ErrCaregiverRequired
	}

	now := s.now()
	switch target {
	case model.AppointmentStatusApproved:
		if apt.ApprovedAt == nil {
			apt.ApprovedAt = &now
		}
	case model.AppointmentStatusInProgress:
		apt.StartTime = &now
	case model.AppointmentStatusCompleted:
		end := now
		if endTime != nil {
			end = *endTime
		}
		apt.EndTime = &end
	}
	apt.Status = target
	return true, nil
}

// persist writes apt guarded by prior. Entering completed also bumps the
// patient's prescription counter in the same store transaction.
func (s *Service) persist(ctx context.Context, apt *model.Appointment, prior model.AppointmentStatus, entered bool) error {
	var err error
	if entered && apt.Status == model.AppointmentStatusCompleted {
		err = s.appointments.UpdateWithPrescription(ctx, apt, prior)
	} else {
		err = s.appointments.Update(ctx, apt, prior)
	}

	switch {
	case err == nil:
		for _, c := range s.caches {
			c.Invalidate()
		}
		return nil
	case errors.Is(err, repository.ErrConflict):
		return ErrConcurrentUpdate
	case errors.Is(err, repository.ErrNotFound):
		return ErrAppointmentNotFound
	default:
		return apperrors.Internal(fmt.Errorf("failed to update appointment: %w", err))
	}
}

func (s *Service) afterTransition(ctx context.Context, actor Actor, apt *model.Appointment, prior model.AppointmentStatus) {
	s.metrics.Transitions.WithLabelValues(string(prior), string(apt.Status)).Inc()
	if apt.Status == model.AppointmentStatusCompleted {
		s.metrics.PrescriptionIncrements.Inc()
	}
	s.publish(ctx, model.AppointmentEvent{
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		CaregiverID:   apt.CaregiverID,
		From:          prior,
		To:            apt.Status,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		OccurredAt:    apt.UpdatedAt,
	})
}

func (s *Service) publish(ctx context.Context, event model.AppointmentEvent) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, s.topic, event); err != nil {
		s.metrics.EventsPublished.WithLabelValues("failed").Inc()
		s.log.Error(err, "failed to publish appointment event", "appointment_id", event.AppointmentID.String(), "to", event.To)
		return
	}
	s.metrics.EventsPublished.WithLabelValues("published").Inc()
}

func actionFor(status model.AppointmentStatus) string {
	switch status {
	case model.AppointmentStatusApproved:
		return model.ActionAppointmentApprove
	case model.AppointmentStatusSuspended:
		return model.ActionAppointmentSuspend
	case model.AppointmentStatusCancelled:
		return model.ActionAppointmentCancel
	default:
		return model.ActionAppointmentUpdate
	}
}

func (s *Service) record(ctx context.Context, actor Actor, action string, apt *model.Appointment, prior model.AppointmentStatus) {
	meta := map[string]interface{}{"status": apt.Status}
	if prior != "" {
		meta["previousStatus"] = prior
	}
	s.auditor.Record(ctx, audit.Entry{
		UserID:      &actor.ID,
		UserRole:    actor.Role,
		Action:      action,
		Description: fmt.Sprintf("appointment %s", apt.Status),
		Entity:      model.EntityAppointment,
		EntityID:    &apt.ID,
		Metadata:    meta,
	})
}

func (s *Service) recordFailure(ctx context.Context, actor Actor, action string, id uuid.UUID, err error) {
	if apperrors.As(err).Code == apperrors.ErrInternal {
		s.log.Error(err, "appointment update failed", "action", action, "appointment_id", id.String())
	}
	entry := audit.Entry{
		UserID:   &actor.ID,
		UserRole: actor.Role,
		Action:   action,
		Entity:   model.EntityAppointment,
		Err:      err,
	}
	if id != uuid.Nil {
		entry.EntityID = &id
	}
	s.auditor.Record(ctx, entry)
}
