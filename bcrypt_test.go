package identity_test

import (
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Run("hashes and verifies a password", func(t *testing.T) {
		hash, err := identity.HashPassword("correct horse battery")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "correct horse battery", hash)

		assert.NoError(t, identity.ComparePasswordAndHash("correct horse battery", hash))
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := identity.HashPassword("")
		assert.ErrorIs(t, err, identity.ErrNoEmptyString)
	})

	t.Run("out of range cost falls back to the default", func(t *testing.T) {
		hash, err := identity.HashPasswordWithCost("correct horse battery", 999)
		require.NoError(t, err)
		assert.NoError(t, identity.ComparePasswordAndHash("correct horse battery", hash))
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		first, err := identity.HashPasswordWithCost("correct horse battery", 4)
		require.NoError(t, err)
		second, err := identity.HashPasswordWithCost("correct horse battery", 4)
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := identity.HashPasswordWithCost("correct horse battery", 4)
	require.NoError(t, err)

	t.Run("mismatch returns sentinel", func(t *testing.T) {
		err := identity.ComparePasswordAndHash("wrong password!", hash)
		assert.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)
	})

	t.Run("garbage hash errors", func(t *testing.T) {
		err := identity.ComparePasswordAndHash("correct horse battery", "not-a-bcrypt-hash")
		assert.Error(t, err)
	})
}
