package model

type Caregiver struct {
	Account
	PhoneNumber string `json:"phoneNumber" db:"phone_number"`
	Department  string `json:"department" db:"department"`
	Available   bool   `json:"available" db:"available"`
}

// UpdateCaregiverRequest changes the profile fields that are set. Email and
// password are not editable here.
type UpdateCaregiverRequest struct {
	FirstName   *string `json:"firstName" validate:"omitempty,min=1"`
	LastName    *string `json:"lastName" validate:"omitempty,min=1"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,phone10"`
	Department  *string `json:"department" validate:"omitempty,min=1"`
	Available   *bool   `json:"available"`
}

func (r UpdateCaregiverRequest) IsEmpty() bool {
	return r.FirstName == nil && r.LastName == nil && r.PhoneNumber == nil &&
		r.Department == nil && r.Available == nil
}
