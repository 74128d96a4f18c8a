package service

import (
	"context"
	"errors"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/telemetry"
)

// UserRepositoryInterface defines the repository interface for user persistence
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, u *domain.User) error
}

// GoogleProfile is the identity a Google sign-in credential asserts.
type GoogleProfile struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// CredentialDecoder extracts the asserted identity from a sign-in credential.
type CredentialDecoder interface {
	Decode(credential string) (*GoogleProfile, error)
}

// TokenIssuer mints session tokens for authenticated users.
type TokenIssuer interface {
	IssueToken(userID string) (string, error)
}

// AuthResult is a completed sign-in.
type AuthResult struct {
	AccessToken string
	User        *domain.User
}

// AuthService handles Google sign-in and session issuance.
type AuthService struct {
	users   UserRepositoryInterface
	decoder CredentialDecoder
	issuer  TokenIssuer
	uuidGen UUIDGenerator
}

func NewAuthService(users UserRepositoryInterface, decoder CredentialDecoder, issuer TokenIssuer) *AuthService {
	return &AuthService{
		users:   users,
		decoder: decoder,
		issuer:  issuer,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// SignInWithGoogle exchanges a Google credential for a session token,
// creating the user on first sign-in and refreshing their profile
// otherwise.
func (s *AuthService) SignInWithGoogle(ctx context.Context, credential string) (*AuthResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "AuthService.SignInWithGoogle", telemetry.SpanAttributes{
		Operation: "signin",
	})
	defer span.End()

	profile, err := s.decoder.Decode(credential)
	if err != nil {
		return nil, domain.ErrInvalidCredential
	}
	if profile.Sub == "" {
		return nil, domain.ErrInvalidCredential
	}

	user, err := s.users.GetByGoogleID(ctx, profile.Sub)
	switch {
	case err == nil:
		user.Email = profile.Email
		user.Name = profile.Name
		user.Picture = profile.Picture
		if err := s.users.UpdateProfile(ctx, user); err != nil {
			span.SetError(err)
			return nil, storeErr(err)
		}
	case errors.Is(err, domain.ErrUserNotFound):
		user = &domain.User{
			ID:        s.uuidGen.NewString(),
			GoogleID:  profile.Sub,
			Email:     profile.Email,
			Name:      profile.Name,
			Picture:   profile.Picture,
			CreatedAt: time.Now().UTC(),
		}
		if err := domain.ValidateUser(user); err != nil {
			return nil, err
		}
		if err := s.users.Create(ctx, user); err != nil {
			span.SetError(err)
			return nil, storeErr(err)
		}
	default:
		span.SetError(err)
		return nil, storeErr(err)
	}

	token, err := s.issuer.IssueToken(user.ID)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to issue token", err)
	}

	return &AuthResult{AccessToken: token, User: user}, nil
}

// Me returns the authenticated user's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, storeErr(err)
	}
	return user, nil
}
