package identity

import (
	"context"

	"github.com/goliatone/go-identity/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use identity helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores the validated principal in the standard
// context so code below the router can use PrincipalFromContext and friends.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	if claims == nil {
		return c
	}

	return WithPrincipal(c, Principal{
		Login: claims.Subject(),
		Roles: append([]string(nil), claims.Roles()...),
	})
}

// NewSessionMiddleware builds the request authentication middleware from the
// subsystem config. Requests without a valid token proceed anonymously; pair
// it with jwtware.RequireRoles on protected routes.
func NewSessionMiddleware(cfg Config, validator TokenValidator, listeners ...ValidationListener) jwtware.Config {
	return jwtware.Config{
		ContextKey:          cfg.GetContextKey(),
		TokenLookup:         cfg.GetTokenLookup(),
		AuthScheme:          cfg.GetAuthScheme(),
		TokenValidator:      tokenValidatorAdapter{validator},
		ContextEnricher:     ContextEnricherAdapter,
		ValidationListeners: listeners,
	}
}

// tokenValidatorAdapter bridges the identity TokenValidator to the jwtware
// claims surface.
type tokenValidatorAdapter struct {
	validator TokenValidator
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
