package identity_test

import (
	"regexp"
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var urlSafeKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestGenerateKey(t *testing.T) {
	t.Run("keys are fixed length and URL safe", func(t *testing.T) {
		key, err := identity.GenerateKey()
		require.NoError(t, err)

		assert.Len(t, key, identity.KeyLength)
		assert.Regexp(t, urlSafeKey, key)
	})

	t.Run("keys do not repeat", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			key, err := identity.GenerateKey()
			require.NoError(t, err)
			assert.False(t, seen[key], "duplicate key generated")
			seen[key] = true
		}
	})
}

func TestKeyGenerators(t *testing.T) {
	for name, gen := range map[string]identity.KeyGenerator{
		"activation": identity.GenerateActivationKey,
		"reset":      identity.GenerateResetKey,
		"password":   identity.GenerateRandomPassword,
	} {
		t.Run(name, func(t *testing.T) {
			key, err := gen()
			require.NoError(t, err)
			assert.Len(t, key, identity.KeyLength)
			assert.Regexp(t, urlSafeKey, key)
		})
	}
}
