package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Auther implements Authenticator over a credential resolver and a token
// service. Every login failure, whatever the internal cause, surfaces as
// ErrInvalidCredentials so callers cannot probe which accounts exist.
type Auther struct {
	resolver       *CredentialResolver
	tokenService   TokenService
	tokenValidator TokenValidator
	compare        func(password, hash string) error
	activitySink   ActivitySink
	logger         Logger
	now            func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(resolver *CredentialResolver, tokenService TokenService) *Auther {
	return &Auther{
		resolver:     resolver,
		tokenService: tokenService,
		compare:      ComparePasswordAndHash,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// WithPasswordCompare overrides the password verification function.
func (s *Auther) WithPasswordCompare(compare func(password, hash string) error) *Auther {
	if compare != nil {
		s.compare = compare
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login authenticates the identifier and password pair and returns a signed
// session token. The identifier may be a login or an email address.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	entry, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		// unknown account and pending account collapse to the same failure
		s.logger.Debug("Login credential resolution failed: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"reason":     failureReason(err),
		})
		return "", ErrInvalidCredentials
	}

	if err := s.compare(password, entry.PasswordHash); err != nil {
		s.logger.Debug("Login password mismatch for %s", entry.Login)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{ID: entry.Login, Type: "user"}, entry.Login, map[string]any{
			"identifier": identifier,
			"reason":     "password_mismatch",
		})
		return "", ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(entry.Login, entry.Roles)
	if err != nil {
		s.logger.Error("Login token generation failed: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{ID: entry.Login, Type: "user"}, entry.Login, map[string]any{
			"identifier": identifier,
			"reason":     "token_generation",
		})
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate session token")
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorRef{ID: entry.Login, Type: "user"}, entry.Login, map[string]any{
		"identifier": identifier,
	})

	return token, nil
}

// SessionFromToken validates a raw token and returns the principal it carries.
func (s *Auther) SessionFromToken(raw string) (Principal, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Debug("SessionFromToken validation failed: %v", err)
		return Principal{}, err
	}

	return Principal{
		Login: claims.Subject(),
		Roles: claims.Roles(),
	}, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, login string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		Login:     login,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	event.OccurredAt = s.now()

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

// failureReason maps internal resolution errors to an audit label without
// leaking account existence to the caller.
func failureReason(err error) string {
	switch {
	case goerrors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case goerrors.Is(err, ErrAccountNotActivated):
		return "account_not_activated"
	default:
		return "resolution_error"
	}
}
