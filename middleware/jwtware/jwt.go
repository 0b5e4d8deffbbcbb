// Package jwtware provides go-router middleware that builds request identity
// from bearer tokens. Authentication never rejects: requests with a missing or
// invalid token proceed anonymously, and route protection is a separate
// authorization concern handled by RequireRoles.
package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup  = "header:" + router.HeaderAuthorization
	ErrTokenMissing     = errors.New("missing or malformed bearer token")
	ErrAuthRequired     = errors.New("authentication required")
	ErrInsufficientRole = errors.New("insufficient role")
	defaultContextKey   = "identity"
)

// TokenValidator interface for validating tokens without import cycles.
// This mirrors the TokenService.Validate method from the identity package.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims interface for structured claims without import cycles.
// This mirrors the AuthClaims interface from the identity package.
type AuthClaims interface {
	Subject() string
	Roles() []string
	HasRole(role string) bool
	HasAnyRole(roles ...string) bool
}

// ValidationListener is invoked after a token has been validated, before the
// request proceeds.
type ValidationListener func(ctx router.Context, claims AuthClaims) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ContextKey     string
	TokenLookup    string
	AuthScheme     string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	// OnAuthFailure is called when a token was presented but failed
	// validation. The request still proceeds anonymously; use this hook for
	// logging or metrics.
	OnAuthFailure func(ctx router.Context, err error)

	// ContextEnricher propagates claims to the standard Go context after
	// successful validation, so code below the router can read the principal.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// ValidationListeners are invoked after token validation succeeds.
	ValidationListeners []ValidationListener
}

// New builds the authentication middleware. It attaches validated claims
// under ContextKey and otherwise leaves the request anonymous.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil || raw == "" {
				// no token presented, proceed anonymously
				return cfg.SuccessHandler(ctx)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				if cfg.OnAuthFailure != nil {
					cfg.OnAuthFailure(ctx, err)
				}
				// invalid token is treated the same as no token
				return cfg.SuccessHandler(ctx)
			}

			if err := cfg.runValidationListeners(ctx, claims); err != nil {
				if cfg.OnAuthFailure != nil {
					cfg.OnAuthFailure(ctx, err)
				}
				return cfg.SuccessHandler(ctx)
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				stdCtx := ctx.Context()
				ctx.SetContext(cfg.ContextEnricher(stdCtx, claims))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// RequireRoles builds the authorization gate for protected routes. Anonymous
// requests get 401; authenticated requests missing every listed role get 403.
// Role names match exactly, case sensitive, OR semantics across the list.
func RequireRoles(contextKey string, roles ...string) router.MiddlewareFunc {
	if contextKey == "" {
		contextKey = defaultContextKey
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			claims, ok := ClaimsFromContext(ctx, contextKey)
			if !ok {
				return ctx.Status(router.StatusUnauthorized).SendString(ErrAuthRequired.Error())
			}

			if len(roles) > 0 && !claims.HasAnyRole(roles...) {
				return ctx.Status(router.StatusForbidden).SendString(ErrInsufficientRole.Error())
			}

			return ctx.Next()
		}
	}
}

// ClaimsFromContext retrieves the claims the authentication middleware stored
// for this request, if any.
func ClaimsFromContext(ctx router.Context, contextKey string) (AuthClaims, bool) {
	if contextKey == "" {
		contextKey = defaultContextKey
	}

	claims, ok := ctx.Locals(contextKey).(AuthClaims)
	return claims, ok
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.TokenValidator == nil {
		panic("IDENTITY: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(ctx router.Context, claims AuthClaims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, claims); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) < 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		authScheme = strings.TrimSpace(authScheme)
		l := len(authScheme)
		if l == 0 {
			return "", ErrTokenMissing
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}
