package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	apperrors "github.com/david-solomon-henshaw/MedAppV1/pkg/errors"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/security"
)

// issueOTP generates a code and overwrites whatever slot the account had, so
// the latest login always wins.
func (s *Service) issueOTP(ctx context.Context, st repository.AccountRepository, id uuid.UUID) (string, time.Time, error) {
	code, err := security.GenerateNumericCode(s.rand, s.cfg.OTPLength)
	if err != nil {
		return "", time.Time{}, apperrors.Internal(err)
	}

	expiresAt := s.now().Add(s.cfg.OTPTTL)
	if err := st.SetOTP(ctx, id, code, expiresAt); err != nil {
		return "", time.Time{}, apperrors.Internal(fmt.Errorf("failed to store otp: %w", err))
	}
	return code, expiresAt, nil
}
