package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Principal is the resolved identity attached to an authenticated request.
type Principal struct {
	Login string   `json:"login"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the principal carries the exact role name.
// Comparison is case sensitive.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal carries at least one of the given
// role names.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	SessionFromToken(token string) (Principal, error)
}

// TokenService issues and validates session tokens
type TokenService interface {
	Generate(subject string, roles []string) (string, error)
	SignClaims(claims *SessionClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// CredentialCache is an invalidate-on-write projection of account data keyed
// independently by login and by email. It is purely a performance layer: its
// absence changes no correctness property, only latency.
type CredentialCache interface {
	GetByLogin(login string) (*CacheEntry, bool)
	GetByEmail(email string) (*CacheEntry, bool)
	Put(entry *CacheEntry)
	Evict(login, email string)
}

// Mailer is the outbound notification collaborator. Implementations deliver
// activation and reset links; the subsystem only emits the request.
type Mailer interface {
	SendActivationMail(ctx context.Context, account *Account) error
	SendPasswordResetMail(ctx context.Context, account *Account) error
}

// Clock supplies the current time. Lifecycle handlers and the token service
// accept one so tests can pin expiry windows.
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
