package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending    AppointmentStatus = "pending"
	AppointmentStatusApproved   AppointmentStatus = "approved"
	AppointmentStatusInProgress AppointmentStatus = "in-progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusSuspended  AppointmentStatus = "suspended"
)

// appointmentTransitions lists the legal targets for each status. Statuses
// with no entry are terminal.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending: {
		AppointmentStatusApproved,
		AppointmentStatusSuspended,
		AppointmentStatusCancelled,
	},
	AppointmentStatusApproved: {
		AppointmentStatusInProgress,
		AppointmentStatusSuspended,
		AppointmentStatusCancelled,
	},
	AppointmentStatusInProgress: {
		AppointmentStatusCompleted,
		AppointmentStatusSuspended,
		AppointmentStatusCancelled,
	},
	AppointmentStatusSuspended: {
		AppointmentStatusApproved,
		AppointmentStatusCancelled,
	},
}

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusApproved, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusSuspended:
		return true
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return s.IsValid() && len(appointmentTransitions[s]) == 0
}

// CanTransitionTo reports whether next is a legal move from s. Staying in the
// same status is not a transition.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RequiresCaregiver reports whether an appointment in s must have a caregiver.
func (s AppointmentStatus) RequiresCaregiver() bool {
	switch s {
	case AppointmentStatusApproved, AppointmentStatusInProgress, AppointmentStatusCompleted:
		return true
	}
	return false
}

type Appointment struct {
	Base
	PatientID   uuid.UUID         `json:"patientId" db:"patient_id"`
	CaregiverID *uuid.UUID        `json:"caregiverId,omitempty" db:"caregiver_id"`
	Status      AppointmentStatus `json:"status" db:"status"`
	Department  string            `json:"department" db:"department"`

	RequestedDate time.Time `json:"patientRequestedDate" db:"requested_date"`
	RequestedTime string    `json:"patientRequestedTime" db:"requested_time"`

	AppointmentDate *time.Time `json:"appointmentDate,omitempty" db:"appointment_date"`
	StartTime       *time.Time `json:"startTime,omitempty" db:"start_time"`
	EndTime         *time.Time `json:"endTime,omitempty" db:"end_time"`
	// ApprovedAt is set on the first entry into approved and never cleared.
	ApprovedAt *time.Time `json:"approvedAt,omitempty" db:"approved_at"`
}

// AppointmentFilter narrows List queries. Zero values are ignored.
type AppointmentFilter struct {
	PatientID   *uuid.UUID
	CaregiverID *uuid.UUID
	Status      []AppointmentStatus
	Department  string
	DateFrom    *time.Time
	DateTo      *time.Time
}

// AppointmentUpdate carries the optional fields of a transition request.
type AppointmentUpdate struct {
	Status          *AppointmentStatus
	CaregiverID     *uuid.UUID
	AppointmentDate *time.Time
	StartTime       *time.Time
	EndTime         *time.Time
}

// AppointmentEvent is published after every stored status change.
type AppointmentEvent struct {
	AppointmentID uuid.UUID         `json:"appointmentId"`
	PatientID     uuid.UUID         `json:"patientId"`
	CaregiverID   *uuid.UUID        `json:"caregiverId,omitempty"`
	From          AppointmentStatus `json:"from"`
	To            AppointmentStatus `json:"to"`
	ActorID       uuid.UUID         `json:"actorId"`
	ActorRole     Role              `json:"actorRole"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// PartitionKey keeps events for one appointment ordered on keyed brokers.
func (e AppointmentEvent) PartitionKey() string {
	return e.AppointmentID.String()
}

type UpdateAppointmentRequest struct {
	Status          *AppointmentStatus `json:"status" binding:"omitempty,appointment_status"`
	CaregiverID     *uuid.UUID         `json:"caregiverId"`
	AppointmentDate *time.Time         `json:"appointmentDate"`
	StartTime       *time.Time         `json:"startTime"`
	EndTime         *time.Time         `json:"endTime"`
}

func (r UpdateAppointmentRequest) Update() AppointmentUpdate {
	return AppointmentUpdate{
		Status:          r.Status,
		CaregiverID:     r.CaregiverID,
		AppointmentDate: r.AppointmentDate,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
	}
}

// CancelAppointmentRequest optionally names a status to use instead of
// cancelled.
type CancelAppointmentRequest struct {
	Status *AppointmentStatus `json:"status" binding:"omitempty,appointment_status"`
}

type CaregiverUpdateRequest struct {
	Status  AppointmentStatus `json:"status" binding:"required,appointment_status"`
	EndTime *time.Time        `json:"endTime"`
}

type AppointmentResponse struct {
	Message     string       `json:"message"`
	Appointment *Appointment `json:"appointment"`
}
