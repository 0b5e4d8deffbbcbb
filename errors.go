package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeLoginInUse        = "LOGIN_ALREADY_USED"
	TextCodeEmailInUse        = "EMAIL_ALREADY_USED"
	TextCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	TextCodeNotActivated      = "ACCOUNT_NOT_ACTIVATED"
	TextCodeInvalidKey        = "INVALID_KEY"
	TextCodeInvalidOrExpired  = "INVALID_OR_EXPIRED_KEY"
	TextCodeInvalidPassword   = "INVALID_PASSWORD"
	TextCodeInvalidCredential = "INVALID_CREDENTIALS"
	TextCodeUnknownRole       = "UNKNOWN_ROLE"
	TextCodeTokenExpired      = "AUTH_TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "AUTH_TOKEN_MALFORMED"
	TextCodeTokenSignature    = "AUTH_TOKEN_BAD_SIGNATURE"
)

// ErrLoginInUse is returned when a registration targets a login already held
// by an activated account.
var ErrLoginInUse = goerrors.New("login is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeLoginInUse).
	WithCode(goerrors.CodeConflict)

// ErrEmailInUse is returned when a registration targets an email already held
// by an activated account.
var ErrEmailInUse = goerrors.New("email is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(goerrors.CodeConflict)

// ErrAccountNotFound is returned when no account matches the identifier.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountNotActivated is returned when an account exists but has not
// redeemed its activation key. Callers on the login path must collapse it to
// ErrInvalidCredentials before it leaves the subsystem.
var ErrAccountNotActivated = goerrors.New("account is not activated", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotActivated).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidKey is returned for an activation key that matches no account,
// including keys already consumed. Callers cannot distinguish the two cases.
var ErrInvalidKey = goerrors.New("invalid activation key", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidKey).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidOrExpiredKey is returned for a reset key that matches no account
// or whose validity window has lapsed.
var ErrInvalidOrExpiredKey = goerrors.New("invalid or expired reset key", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidOrExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidPassword is returned when the supplied current password does not
// match the stored hash.
var ErrInvalidPassword = goerrors.New("invalid password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is the uniform outward-facing authentication failure.
// Unknown identifier, inactive account, and wrong password all collapse to
// this value so callers cannot enumerate accounts.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnknownRole is returned when a role assignment names a role outside the
// closed role set.
var ErrUnknownRole = goerrors.New("unknown role", goerrors.CategoryValidation).
	WithTextCode(TextCodeUnknownRole).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned when the session token is past its expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when the token is not structurally well
// formed.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignature is returned when the token signature does not verify.
var ErrTokenSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty required string inputs such as passwords.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the internal bcrypt mismatch result.
var ErrMismatchedHashAndPassword = goerrors.New("mismatched hash and password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// wrapSentinel layers metadata onto a sentinel while keeping the sentinel
// itself reachable through the error chain. Clone produces a detached copy,
// so goerrors.Is would stop matching; Wrap chains the sentinel as source.
func wrapSentinel(sentinel *goerrors.Error, metadata map[string]any) *goerrors.Error {
	wrapped := goerrors.Wrap(sentinel, sentinel.Category, sentinel.Message).
		WithTextCode(sentinel.TextCode).
		WithCode(sentinel.Code)
	if metadata != nil {
		wrapped = wrapped.WithMetadata(metadata)
	}
	return wrapped
}

// IsTokenError reports whether err belongs to the token error taxonomy. All
// three members must be handled identically by callers; they only differ for
// logging.
func IsTokenError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenExpired) ||
		goerrors.Is(err, ErrTokenMalformed) ||
		goerrors.Is(err, ErrTokenSignature)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenExpired) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// isUniqueViolation detects a repository uniqueness conflict across the
// drivers we support (sqlite via sqliteshim, postgres).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
