package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

// Identity is request scoped, never process wide: callers receive it through
// an explicit context value instead of a mutable global holder.

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	return raw, ok
}

// CurrentLogin returns the authenticated login for the request, if any.
func CurrentLogin(ctx context.Context) (string, bool) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return principal.Login, true
}

// IsAuthenticated reports whether the request carries a non-anonymous
// principal.
func IsAuthenticated(ctx context.Context) bool {
	principal, ok := PrincipalFromContext(ctx)
	return ok && principal.Login != "" && !principal.HasRole(RoleAnonymous)
}

// HasAnyRole reports whether the request principal carries at least one of
// the given roles. Matching is exact and case sensitive.
func HasAnyRole(ctx context.Context, roles ...string) bool {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return principal.HasAnyRole(roles...)
}

// GetRouterPrincipal extracts the Principal stored by the session middleware
// from the router context.
func GetRouterPrincipal(ctx router.Context, key string) (Principal, bool) {
	if key == "" {
		key = "identity"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return Principal{}, false
	}
	principal, ok := raw.(Principal)
	return principal, ok
}
