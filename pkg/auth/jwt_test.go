package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, err := NewJWTService("secret", "medapp", fixedClock(now))
	require.NoError(t, err)

	id := uuid.New()
	token, err := svc.Issue(id, "caregiver")
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.ID)
	assert.Equal(t, "caregiver", claims.Role)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	signer, err := NewJWTService("secret", "medapp", fixedClock(issued))
	require.NoError(t, err)
	token, err := signer.Issue(uuid.New(), "admin")
	require.NoError(t, err)

	later, err := NewJWTService("secret", "medapp", fixedClock(issued.Add(61*time.Minute)))
	require.NoError(t, err)
	_, err = later.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	a, _ := NewJWTService("secret-a", "medapp", nil)
	b, _ := NewJWTService("secret-b", "medapp", nil)

	token, err := a.Issue(uuid.New(), "patient")
	require.NoError(t, err)

	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	svc, _ := NewJWTService("secret", "medapp", nil)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "x", Role: "admin"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEmptySecret(t *testing.T) {
	_, err := NewJWTService("", "medapp", nil)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
