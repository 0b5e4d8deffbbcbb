package identity_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestSimpleConfigDefaults(t *testing.T) {
	t.Run("zero value falls back everywhere", func(t *testing.T) {
		cfg := &identity.SimpleConfig{}

		assert.Equal(t, "identity", cfg.GetContextKey())
		assert.Equal(t, 24*time.Hour, cfg.GetTokenExpiration())
		assert.Equal(t, "header:Authorization", cfg.GetTokenLookup())
		assert.Equal(t, "Bearer", cfg.GetAuthScheme())
		assert.Equal(t, 24*time.Hour, cfg.GetResetKeyValidity())
		assert.Equal(t, 30*24*time.Hour, cfg.GetPurgeAge())
		assert.Equal(t, identity.DefaultBcryptCost, cfg.GetBcryptCost())
	})

	t.Run("explicit values win", func(t *testing.T) {
		cfg := &identity.SimpleConfig{
			SigningKey:       "secret",
			ContextKey:       "session",
			TokenExpiration:  time.Hour,
			TokenLookup:      "cookie:session_token",
			AuthScheme:       "Token",
			Issuer:           "svc",
			Audience:         []string{"api"},
			ResetKeyValidity: 2 * time.Hour,
			PurgeAge:         7 * 24 * time.Hour,
			BcryptCost:       10,
		}

		assert.Equal(t, "secret", cfg.GetSigningKey())
		assert.Equal(t, "session", cfg.GetContextKey())
		assert.Equal(t, time.Hour, cfg.GetTokenExpiration())
		assert.Equal(t, "cookie:session_token", cfg.GetTokenLookup())
		assert.Equal(t, "Token", cfg.GetAuthScheme())
		assert.Equal(t, "svc", cfg.GetIssuer())
		assert.Equal(t, []string{"api"}, cfg.GetAudience())
		assert.Equal(t, 2*time.Hour, cfg.GetResetKeyValidity())
		assert.Equal(t, 7*24*time.Hour, cfg.GetPurgeAge())
		assert.Equal(t, 10, cfg.GetBcryptCost())
	})

	t.Run("default config carries the reference policy", func(t *testing.T) {
		cfg := identity.NewDefaultConfig("secret")

		assert.Equal(t, "secret", cfg.GetSigningKey())
		assert.Equal(t, "HS256", cfg.GetSigningMethod())
		assert.Equal(t, 24*time.Hour, cfg.GetTokenExpiration())
		assert.Equal(t, 30*24*time.Hour, cfg.GetPurgeAge())
	})
}
