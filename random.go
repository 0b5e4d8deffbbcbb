package identity

import (
	"crypto/rand"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
)

// KeyLength is the exact character length of activation and reset keys.
const KeyLength = 50

// KeyGenerator produces single-use account keys. Implementations must draw
// from a cryptographically secure source; keys are never derived from
// timestamps or sequence ids.
type KeyGenerator func() (string, error)

// GenerateKey returns a URL-safe random key of exactly KeyLength characters.
func GenerateKey() (string, error) {
	// Unpadded URL-safe base64 yields 4 chars per 3 bytes; draw enough bytes
	// to truncate to the fixed length.
	buf := make([]byte, KeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}

	key := base64.RawURLEncoding.EncodeToString(buf)
	return key[:KeyLength], nil
}

// GenerateActivationKey returns a fresh single-use activation key.
func GenerateActivationKey() (string, error) {
	return GenerateKey()
}

// GenerateResetKey returns a fresh single-use password reset key.
func GenerateResetKey() (string, error) {
	return GenerateKey()
}

// GenerateRandomPassword returns a throwaway password for admin-created
// accounts; the owner is expected to reset it before first login.
func GenerateRandomPassword() (string, error) {
	return GenerateKey()
}
