package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/middleware/jwtware"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextEnricherAdapter(t *testing.T) {
	tokens := identity.NewTokenService([]byte("enricher-secret"), time.Hour, "test", nil)

	token, err := tokens.Generate("alice", []string{identity.RoleUser})
	require.NoError(t, err)

	claims, err := tokens.Validate(token)
	require.NoError(t, err)

	enriched := identity.ContextEnricherAdapter(context.Background(), claims)

	principal, ok := identity.PrincipalFromContext(enriched)
	require.True(t, ok)
	assert.Equal(t, "alice", principal.Login)
	assert.True(t, principal.HasRole(identity.RoleUser))
	assert.True(t, identity.IsAuthenticated(enriched))

	t.Run("nil claims leave the context untouched", func(t *testing.T) {
		base := context.Background()
		assert.Equal(t, base, identity.ContextEnricherAdapter(base, nil))
	})
}

func TestNewSessionMiddleware(t *testing.T) {
	tokens := identity.NewTokenService([]byte("middleware-secret"), time.Hour, "test", nil)

	cfg := identity.NewDefaultConfig("middleware-secret")
	cfg.ContextKey = "session"
	cfg.TokenLookup = "header:Authorization,cookie:session_token"

	mwCfg := identity.NewSessionMiddleware(cfg, tokens, func(ctx router.Context, claims jwtware.AuthClaims) error {
		return nil
	})

	assert.Equal(t, "session", mwCfg.ContextKey)
	assert.Equal(t, "header:Authorization,cookie:session_token", mwCfg.TokenLookup)
	assert.Equal(t, "Bearer", mwCfg.AuthScheme)
	require.NotNil(t, mwCfg.TokenValidator)
	require.NotNil(t, mwCfg.ContextEnricher)
	require.Len(t, mwCfg.ValidationListeners, 1)

	t.Run("validator bridges identity claims", func(t *testing.T) {
		token, err := tokens.Generate("alice", []string{identity.RoleUser})
		require.NoError(t, err)

		claims, err := mwCfg.TokenValidator.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject())
		assert.True(t, claims.HasRole(identity.RoleUser))
	})

	t.Run("validator propagates token errors", func(t *testing.T) {
		_, err := mwCfg.TokenValidator.Validate("not-a-token")
		require.Error(t, err)
	})
}
