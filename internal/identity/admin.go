package identity

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// AdminSecret verifies the static admin secret against its bcrypt hash.
// The hash comes from configuration; the plaintext is exchanged once for an
// admin session token and never stored.
type AdminSecret struct {
	hash []byte
}

// NewAdminSecret wraps a bcrypt hash of the admin secret.
func NewAdminSecret(bcryptHash string) *AdminSecret {
	return &AdminSecret{hash: []byte(bcryptHash)}
}

// HashAdminSecret produces a bcrypt hash for storing in configuration.
func HashAdminSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin secret: %w", err)
	}
	return string(h), nil
}

// Check reports whether the presented secret matches the configured hash.
func (a *AdminSecret) Check(secret string) bool {
	if len(a.hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(secret)) == nil
}
