package model

import (
	"fmt"
	"time"
)

// Role tags an account with the store it lives in. It never changes.
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
)

// DefaultRoleOrder is the lookup priority used when the same email exists in
// more than one role store.
var DefaultRoleOrder = []Role{RoleAdmin, RolePatient, RoleCaregiver}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RolePatient, RoleCaregiver:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Account holds the authentication shape shared by admins, patients and
// caregivers. OTPCode and OTPExpiresAt are either both set or both nil.
type Account struct {
	Base
	FirstName    string     `json:"firstName" db:"first_name"`
	LastName     string     `json:"lastName" db:"last_name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         Role       `json:"role" db:"role"`
	OTPCode      *string    `json:"-" db:"otp_code"`
	OTPExpiresAt *time.Time `json:"-" db:"otp_expires_at"`
}

func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// PendingOTP returns the stored code and expiry when a request is pending.
func (a *Account) PendingOTP() (string, time.Time, bool) {
	if a.OTPCode == nil || a.OTPExpiresAt == nil {
		return "", time.Time{}, false
	}
	return *a.OTPCode, *a.OTPExpiresAt, true
}

func (a *Account) SetOTP(code string, expiresAt time.Time) {
	a.OTPCode = &code
	a.OTPExpiresAt = &expiresAt
}

func (a *Account) ClearOTP() {
	a.OTPCode = nil
	a.OTPExpiresAt = nil
}
