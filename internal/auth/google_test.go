package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeGoogleCredential(t *testing.T, payload map[string]string) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".signature"
}

func TestDecodeGoogleCredential(t *testing.T) {
	credential := fakeGoogleCredential(t, map[string]string{
		"sub":     "google-sub-1",
		"email":   "user@example.com",
		"name":    "Test User",
		"picture": "https://example.com/p.png",
	})

	profile, err := DecodeGoogleCredential(credential)
	require.NoError(t, err)

	assert.Equal(t, "google-sub-1", profile.Sub)
	assert.Equal(t, "user@example.com", profile.Email)
	assert.Equal(t, "Test User", profile.Name)
	assert.Equal(t, "https://example.com/p.png", profile.Picture)
}

func TestDecodeGoogleCredential_BadFormat(t *testing.T) {
	_, err := DecodeGoogleCredential("only.two")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestDecodeGoogleCredential_BadBase64(t *testing.T) {
	_, err := DecodeGoogleCredential("a.!!!notbase64!!!.c")
	assert.Error(t, err)
}

func TestDecodeGoogleCredential_MissingSub(t *testing.T) {
	credential := fakeGoogleCredential(t, map[string]string{
		"email": "user@example.com",
	})

	_, err := DecodeGoogleCredential(credential)
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}
