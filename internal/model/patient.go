package model

import (
	"time"

	"github.com/lib/pq"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type Patient struct {
	Account
	DateOfBirth time.Time `json:"dateOfBirth" db:"date_of_birth"`
	Gender      Gender    `json:"gender" db:"gender"`
	PhoneNumber string    `json:"phoneNumber" db:"phone_number"`
	// TotalPrescriptions is incremented once per appointment completion and
	// never recomputed.
	TotalPrescriptions int `json:"totalPrescriptions" db:"total_prescriptions"`
	// AppointmentIDs is append only.
	AppointmentIDs pq.StringArray `json:"appointments" db:"appointment_ids"`
}

type PatientStatistics struct {
	TotalAppointments     int `json:"totalAppointments"`
	TotalCaregivers       int `json:"totalCaregivers"`
	CompletedAppointments int `json:"completedAppointments"`
	TotalPrescriptions    int `json:"totalPrescriptions"`
}

type PatientProfile struct {
	Patient    *Patient          `json:"patient"`
	Statistics PatientStatistics `json:"statistics"`
}
