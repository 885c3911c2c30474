package model

import "time"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

type LoginResponse struct {
	Message string `json:"message"`
	Role    Role   `json:"role"`
}

type VerifyOTPResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type RegisterAdminRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
}

type RegisterPatientRequest struct {
	FirstName   string    `json:"firstName" validate:"required"`
	LastName    string    `json:"lastName" validate:"required"`
	Email       string    `json:"email" validate:"required,email"`
	Password    string    `json:"password" validate:"required,min=6"`
	DateOfBirth time.Time `json:"dateOfBirth" validate:"required"`
	PhoneNumber string    `json:"phoneNumber" validate:"required,phone10"`
	Gender      Gender    `json:"gender" validate:"required,oneof=male female other"`
}

type CreateCaregiverRequest struct {
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	PhoneNumber string `json:"phoneNumber" validate:"required,phone10"`
	Department  string `json:"department" validate:"required"`
	Available   *bool  `json:"available"`
}

type RequestAppointmentRequest struct {
	RequestedDate time.Time `json:"patientRequestedDate" binding:"required"`
	RequestedTime string    `json:"patientRequestedTime" binding:"required"`
	Department    string    `json:"department" binding:"required"`
}
