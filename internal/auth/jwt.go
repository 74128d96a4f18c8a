package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/golang-jwt/jwt"
)

// TokenService issues and verifies the HS256 JWTs the API uses for
// session tokens.
type TokenService struct {
	secret     []byte
	expiration time.Duration
}

// NewTokenService creates a TokenService. expirationDays controls how
// long issued tokens stay valid.
func NewTokenService(secret string, expirationDays int) *TokenService {
	if expirationDays <= 0 {
		expirationDays = 7
	}
	return &TokenService{
		secret:     []byte(secret),
		expiration: time.Duration(expirationDays) * 24 * time.Hour,
	}
}

// IssueToken creates a signed access token for a user.
func (s *TokenService) IssueToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.expiration).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a token and returns the user ID it was issued
// for. Implements middleware.TokenVerifier.
func (s *TokenService) VerifyToken(_ context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", domain.ErrInvalidToken
	}
	return sub, nil
}
