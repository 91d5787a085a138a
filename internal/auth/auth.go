package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingAPIKey   = errors.New("missing authorization header")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrAuthUnavailable = errors.New("auth backend unavailable")
)

// KeyPrefix starts every service key.
const KeyPrefix = "msk_"

// keyPrefixLen is how much of the key is stored in clear for lookup ("msk_abcd").
const keyPrefixLen = 8

// ServiceContext identifies the calling backend service.
type ServiceContext struct {
	KeyID string
	Name  string
}

// Authenticator validates a bearer token and returns the calling service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*ServiceContext, error)
}

// ExtractBearerToken pulls the token out of an Authorization header value.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAPIKey
	}
	// RFC 6750: the "Bearer" scheme is case-insensitive.
	if len(header) <= 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", ErrMissingAPIKey
	}
	token := strings.TrimSpace(header[7:])
	if len(token) < keyPrefixLen || !strings.HasPrefix(token, KeyPrefix) {
		return "", ErrInvalidAPIKey
	}
	return token, nil
}

// GenerateServiceKey creates a new msk_ key with its bcrypt hash and prefix.
// Returns (fullKey, hash, prefix, error). The fullKey is shown to the operator once.
func GenerateServiceKey() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateServiceKey: %w", err)
	}
	fullKey := KeyPrefix + hex.EncodeToString(raw)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateServiceKey: %w", err)
	}

	return fullKey, string(hashBytes), fullKey[:keyPrefixLen], nil
}
