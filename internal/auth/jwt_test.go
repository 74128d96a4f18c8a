package auth

import (
	"context"
	"testing"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := NewTokenService("test-secret", 7)

	token, err := svc.IssueToken("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", 7)
	verifier := NewTokenService("secret-b", 7)

	token, err := issuer.IssueToken("user-123")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	svc := NewTokenService("test-secret", 7)

	claims := jwt.MapClaims{
		"sub": "user-123",
		"iat": time.Now().Add(-48 * time.Hour).Unix(),
		"exp": time.Now().Add(-24 * time.Hour).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyToken(context.Background(), expired)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := NewTokenService("test-secret", 7)

	_, err := svc.VerifyToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenService_RejectsMissingSubject(t *testing.T) {
	svc := NewTokenService("test-secret", 7)

	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
