package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents validated session claims
type AuthClaims interface {
	Subject() string
	Roles() []string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// SessionClaims is the concrete implementation of AuthClaims carried inside
// the signed token envelope.
type SessionClaims struct {
	jwt.RegisteredClaims
	RoleSet []string `json:"roles,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*SessionClaims)(nil)

// Subject returns the subject claim, the account login.
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Roles returns the role set embedded in the token.
func (c *SessionClaims) Roles() []string {
	return c.RoleSet
}

// HasRole checks if the session carries the exact role name. Comparison is
// case sensitive.
func (c *SessionClaims) HasRole(role string) bool {
	for _, r := range c.RoleSet {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the session carries at least one of the given roles.
func (c *SessionClaims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Principal converts the claims into the request-scoped principal shape.
func (c *SessionClaims) Principal() Principal {
	return Principal{
		Login: c.Subject(),
		Roles: append([]string(nil), c.RoleSet...),
	}
}
