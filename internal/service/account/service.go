package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/audit"
	apperrors "github.com/david-solomon-henshaw/MedAppV1/pkg/errors"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/security"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/validator"
)

var (
	ErrEmailTaken        = apperrors.New(apperrors.ErrConflict, "Email is already registered")
	ErrPatientNotFound   = apperrors.New(apperrors.ErrNotFound, "Patient not found")
	ErrCaregiverNotFound = apperrors.New(apperrors.ErrNotFound, "Caregiver not found")
	ErrCaregiverBusy     = apperrors.New(apperrors.ErrConflict, "Caregiver has active appointments")
	ErrNothingToUpdate   = apperrors.New(apperrors.ErrBadRequest, "No fields to update")
)

type Service struct {
	admins       repository.AdminRepository
	patients     repository.PatientRepository
	caregivers   repository.CaregiverRepository
	appointments repository.AppointmentRepository
	hasher       security.PasswordHasher
	validate     *validator.Validator
	auditor      *audit.Service
	log          *logger.Logger
}

func NewService(
	admins repository.AdminRepository,
	patients repository.PatientRepository,
	caregivers repository.CaregiverRepository,
	appointments repository.AppointmentRepository,
	hasher security.PasswordHasher,
	auditor *audit.Service,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		admins:       admins,
		patients:     patients,
		caregivers:   caregivers,
		appointments: appointments,
		hasher:       hasher,
		validate:     validator.New(),
		auditor:      auditor,
		log:          log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkEmail rejects an email present in any role store, so new accounts
// never depend on login priority to be reachable.
func (s *Service) checkEmail(ctx context.Context, email string) error {
	stores := []repository.AccountRepository{s.admins, s.patients, s.caregivers}
	for _, st := range stores {
		_, err := st.GetByEmail(ctx, email)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return apperrors.Internal(fmt.Errorf("failed to check %s email: %w", st.Role(), err))
		}
	}
	return nil
}

// prepare validates req and returns the normalized email and password hash.
func (s *Service) prepare(ctx context.Context, req interface{}, email, password string) (string, string, error) {
	if err := s.validate.Validate(req); err != nil {
		return "", "", apperrors.BadRequest(err.Error(), nil)
	}
	email = normalizeEmail(email)
	if err := s.checkEmail(ctx, email); err != nil {
		return "", "", err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return "", "", apperrors.BadRequest(fmt.Sprintf("Password must be at least %d characters long", security.MinPasswordLen), err)
		}
		return "", "", apperrors.Internal(err)
	}
	return email, hash, nil
}

func createErr(err error) error {
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return ErrEmailTaken
	}
	return apperrors.Internal(err)
}

// RegisterAdmin creates an admin account. actorID is the admin performing
// the registration.
func (s *Service) RegisterAdmin(ctx context.Context, actorID uuid.UUID, req model.RegisterAdminRequest) (*model.Account, error) {
	email, hash, err := s.prepare(ctx, req, req.Email, req.Password)
	if err != nil {
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionAdminRegister, err)
		return nil, err
	}

	admin := &model.Account{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		err = createErr(err)
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionAdminRegister, err)
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:      &actorID,
		UserRole:    model.RoleAdmin,
		Action:      model.ActionAdminRegister,
		Description: "admin registered",
		Entity:      model.EntityAdmin,
		EntityID:    &admin.ID,
	})
	return admin, nil
}

func (s *Service) RegisterPatient(ctx context.Context, req model.RegisterPatientRequest) (*model.Patient, error) {
	email, hash, err := s.prepare(ctx, req, req.Email, req.Password)
	if err != nil {
		s.recordFailure(ctx, nil, model.RolePatient, model.ActionRegister, err)
		return nil, err
	}

	patient := &model.Patient{
		Account: model.Account{
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Email:        email,
			PasswordHash: hash,
		},
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		PhoneNumber: req.PhoneNumber,
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		err = createErr(err)
		s.recordFailure(ctx, nil, model.RolePatient, model.ActionRegister, err)
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:      &patient.ID,
		UserRole:    model.RolePatient,
		Action:      model.ActionRegister,
		Description: "patient registered",
		Entity:      model.EntityPatient,
		EntityID:    &patient.ID,
	})
	return patient, nil
}

// CreateCaregiver registers a caregiver. Caregivers start available unless
// the request says otherwise.
func (s *Service) CreateCaregiver(ctx context.Context, actorID uuid.UUID, req model.CreateCaregiverRequest) (*model.Caregiver, error) {
	email, hash, err := s.prepare(ctx, req, req.Email, req.Password)
	if err != nil {
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionCaregiverCreate, err)
		return nil, err
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	caregiver := &model.Caregiver{
		Account: model.Account{
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Email:        email,
			PasswordHash: hash,
		},
		PhoneNumber: req.PhoneNumber,
		Department:  strings.TrimSpace(req.Department),
		Available:   available,
	}
	if err := s.caregivers.Create(ctx, caregiver); err != nil {
		err = createErr(err)
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionCaregiverCreate, err)
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:      &actorID,
		UserRole:    model.RoleAdmin,
		Action:      model.ActionCaregiverCreate,
		Description: "caregiver created",
		Entity:      model.EntityCaregiver,
		EntityID:    &caregiver.ID,
		Metadata:    map[string]string{"department": caregiver.Department},
	})
	return caregiver, nil
}

func (s *Service) ListCaregivers(ctx context.Context) ([]*model.Caregiver, error) {
	caregivers, err := s.caregivers.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list caregivers: %w", err))
	}
	if caregivers == nil {
		caregivers = []*model.Caregiver{}
	}
	return caregivers, nil
}

func (s *Service) GetCaregiver(ctx context.Context, id uuid.UUID) (*model.Caregiver, error) {
	caregiver, err := s.caregivers.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCaregiverNotFound
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get caregiver: %w", err))
	}
	return caregiver, nil
}

// UpdateCaregiver applies the set fields of req to the caregiver profile.
func (s *Service) UpdateCaregiver(ctx context.Context, actorID, id uuid.UUID, req model.UpdateCaregiverRequest) (*model.Caregiver, error) {
	if req.IsEmpty() {
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionCaregiverUpdate, ErrNothingToUpdate)
		return nil, ErrNothingToUpdate
	}
	if err := s.validate.Validate(req); err != nil {
		err = apperrors.BadRequest(err.Error(), nil)
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionCaregiverUpdate, err)
		return nil, err
	}

	caregiver, err := s.GetCaregiver(ctx, id)
	if err != nil {
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionCaregiverUpdate, err)
		return nil, err
	}

	if req.FirstName != nil {
		caregiver.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		caregiver.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.PhoneNumber != nil {
		caregiver.PhoneNumber = *req.PhoneNumber
	}
	if req.Department != nil {
		caregiver.Department = strings.TrimSpace(*req.Department)
	}
	if req.Available != nil {
		caregiver.Available = *req.Available
	}

	if err := s.caregivers.Update(ctx, caregiver); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = ErrCaregiverNotFound
		} else {
			err = apperrors.Internal(fmt.Errorf("failed to update caregiver: %w", err))
		}
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionCaregiverUpdate, err)
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:      &actorID,
		UserRole:    model.RoleAdmin,
		Action:      model.ActionCaregiverUpdate,
		Description: "caregiver updated",
		Entity:      model.EntityCaregiver,
		EntityID:    &caregiver.ID,
	})
	return caregiver, nil
}

// DeleteCaregiver removes a caregiver that no longer has pending, approved,
// in-progress or suspended appointments. Finished appointments keep their
// history without the caregiver reference.
func (s *Service) DeleteCaregiver(ctx context.Context, actorID, id uuid.UUID) error {
	err := s.caregivers.Delete(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		err = ErrCaregiverNotFound
	case errors.Is(err, repository.ErrConflict):
		err = ErrCaregiverBusy
	default:
		err = apperrors.Internal(fmt.Errorf("failed to delete caregiver: %w", err))
	}
	if err != nil {
		s.recordFailure(ctx, &actorID, model.RoleAdmin, model.ActionCaregiverDelete, err)
		return err
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:      &actorID,
		UserRole:    model.RoleAdmin,
		Action:      model.ActionCaregiverDelete,
		Description: "caregiver deleted",
		Entity:      model.EntityCaregiver,
		EntityID:    &id,
	})
	return nil
}

// PatientProfile returns the patient with statistics derived from their
// appointments. TotalPrescriptions comes from the stored counter.
func (s *Service) PatientProfile(ctx context.Context, patientID uuid.UUID) (*model.PatientProfile, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get patient: %w", err))
	}

	apts, err := s.appointments.List(ctx, model.AppointmentFilter{PatientID: &patientID})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}

	caregivers := make(map[uuid.UUID]struct{})
	stats := model.PatientStatistics{
		TotalAppointments:  len(apts),
		TotalPrescriptions: patient.TotalPrescriptions,
	}
	for _, apt := range apts {
		if apt.CaregiverID != nil {
			caregivers[*apt.CaregiverID] = struct{}{}
		}
		if apt.Status == model.AppointmentStatusCompleted {
			stats.CompletedAppointments++
		}
	}
	stats.TotalCaregivers = len(caregivers)

	return &model.PatientProfile{Patient: patient, Statistics: stats}, nil
}

func (s *Service) recordFailure(ctx context.Context, actorID *uuid.UUID, role model.Role, action string, err error) {
	if apperrors.As(err).Code == apperrors.ErrInternal {
		s.log.Error(err, "account operation failed", "action", action)
	}
	s.auditor.Record(ctx, audit.Entry{
		UserID:   actorID,
		UserRole: role,
		Action:   action,
		Entity:   model.EntityError,
		Err:      err,
	})
}
