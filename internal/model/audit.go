package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionLog records a user action. UserID and EntityID are nil for failures
// that happen before an account or entity is resolved.
type ActionLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       *uuid.UUID      `json:"userId,omitempty" db:"user_id"`
	UserRole     Role            `json:"userRole" db:"user_role"`
	Action       string          `json:"action" db:"action"`
	Description  string          `json:"description" db:"description"`
	Entity       string          `json:"entity" db:"entity"`
	EntityID     *uuid.UUID      `json:"entityId,omitempty" db:"entity_id"`
	Status       string          `json:"status" db:"status"`
	ErrorDetails string          `json:"errorDetails,omitempty" db:"error_details"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress    string          `json:"ipAddress,omitempty" db:"ip_address"`
	CreatedAt    time.Time       `json:"timestamp" db:"created_at"`
}

const (
	ActionStatusSuccess = "success"
	ActionStatusFailed  = "failed"

	ActionLogin                      = "login"
	ActionVerifyOTP                  = "verify_otp"
	ActionRegister                   = "register"
	ActionAdminRegister              = "admin_register"
	ActionCaregiverCreate            = "caregiver_create"
	ActionCaregiverUpdate            = "caregiver_update"
	ActionCaregiverDelete            = "caregiver_delete"
	ActionPatientBookAppointment     = "patient_book_appointment"
	ActionAppointmentUpdate          = "appointment_update"
	ActionAppointmentApprove         = "appointment_approve"
	ActionAppointmentSuspend         = "appointment_suspend"
	ActionAppointmentCancel          = "appointment_cancel"
	ActionCaregiverUpdateAppointment = "caregiver_update_appointment"

	EntityAdmin       = "admin"
	EntityPatient     = "patient"
	EntityCaregiver   = "caregiver"
	EntityAppointment = "appointment"
	EntityError       = "error"
)
