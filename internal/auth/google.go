package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/ainotes/secondbrain/internal/domain"
)

// GoogleProfile is the subset of the Google ID token payload the app
// cares about.
type GoogleProfile struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// DecodeGoogleCredential extracts the profile from a Google OAuth
// credential (a JWT). The payload is decoded without upstream signature
// verification; the credential is only trusted as far as mapping a
// browser sign-in to a local user record.
func DecodeGoogleCredential(credential string) (*GoogleProfile, error) {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return nil, domain.ErrInvalidCredential
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnauthorized, "invalid google credential", err)
	}

	var profile GoogleProfile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnauthorized, "invalid google credential", err)
	}

	if profile.Sub == "" {
		return nil, domain.ErrInvalidCredential
	}

	return &profile, nil
}
