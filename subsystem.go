package identity

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uptrace/bun"
)

// Subsystem wires the credential cache, resolver, token service,
// authenticator, and every lifecycle handler from a single Config. It is the
// batteries-included entry point; each collaborator can also be constructed
// on its own.
type Subsystem struct {
	repo     RepositoryManager
	cache    *MemoryCredentialCache
	resolver *CredentialResolver
	tokens   TokenService
	auther   *Auther

	RegisterAccount    *RegisterAccountHandler
	ActivateAccount    *ActivateAccountHandler
	CreateAccount      *CreateAccountHandler
	DeleteAccount      *DeleteAccountHandler
	UpdateProfile      *UpdateProfileHandler
	AssignRoles        *AssignRolesHandler
	ChangePassword     *ChangePasswordHandler
	InitializeReset    *InitializePasswordResetHandler
	FinalizeReset      *FinalizePasswordResetHandler
	PurgeStaleAccounts *PurgeStaleAccountsHandler
}

// New builds the full subsystem over the given database and config.
func New(db *bun.DB, cfg Config) *Subsystem {
	repo := NewRepositoryManager(db)
	cache := NewCredentialCache()
	resolver := NewCredentialResolver(repo.Accounts(), cache)
	tokens := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		jwt.ClaimStrings(cfg.GetAudience()),
	)

	s := &Subsystem{
		repo:     repo,
		cache:    cache,
		resolver: resolver,
		tokens:   tokens,
		auther:   NewAuthenticator(resolver, tokens),

		RegisterAccount: NewRegisterAccountHandler(repo, cache).
			WithBcryptCost(cfg.GetBcryptCost()),
		ActivateAccount: NewActivateAccountHandler(repo, cache),
		CreateAccount: NewCreateAccountHandler(repo, cache),
		DeleteAccount: NewDeleteAccountHandler(repo, cache),
		UpdateProfile: NewUpdateProfileHandler(repo, cache),
		AssignRoles:   NewAssignRolesHandler(repo, cache),
		ChangePassword: NewChangePasswordHandler(repo, cache).
			WithBcryptCost(cfg.GetBcryptCost()),
		InitializeReset: NewInitializePasswordResetHandler(repo, cache),
		FinalizeReset: NewFinalizePasswordResetHandler(repo, cache).
			WithValidity(cfg.GetResetKeyValidity()).
			WithBcryptCost(cfg.GetBcryptCost()),
		PurgeStaleAccounts: NewPurgeStaleAccountsHandler(repo, cache).
			WithPurgeAge(cfg.GetPurgeAge()),
	}

	return s
}

// WithLogger propagates a logger to every collaborator.
func (s *Subsystem) WithLogger(logger Logger) *Subsystem {
	if logger == nil {
		return s
	}

	s.resolver.logger = logger
	s.auther.WithLogger(logger)
	s.RegisterAccount.WithLogger(logger)
	s.ActivateAccount.WithLogger(logger)
	s.CreateAccount.WithLogger(logger)
	s.DeleteAccount.WithLogger(logger)
	s.UpdateProfile.WithLogger(logger)
	s.AssignRoles.WithLogger(logger)
	s.ChangePassword.WithLogger(logger)
	s.InitializeReset.WithLogger(logger)
	s.FinalizeReset.WithLogger(logger)
	s.PurgeStaleAccounts.WithLogger(logger)

	return s
}

// WithMailer propagates the outbound mail collaborator to the handlers that
// send activation and reset links.
func (s *Subsystem) WithMailer(mailer Mailer) *Subsystem {
	s.RegisterAccount.WithMailer(mailer)
	s.CreateAccount.WithMailer(mailer)
	s.InitializeReset.WithMailer(mailer)
	return s
}

// WithActivitySink propagates the audit sink to every collaborator.
func (s *Subsystem) WithActivitySink(sink ActivitySink) *Subsystem {
	s.auther.WithActivitySink(sink)
	s.RegisterAccount.WithActivitySink(sink)
	s.ActivateAccount.WithActivitySink(sink)
	s.CreateAccount.WithActivitySink(sink)
	s.DeleteAccount.WithActivitySink(sink)
	s.UpdateProfile.WithActivitySink(sink)
	s.AssignRoles.WithActivitySink(sink)
	s.ChangePassword.WithActivitySink(sink)
	s.InitializeReset.WithActivitySink(sink)
	s.FinalizeReset.WithActivitySink(sink)
	s.PurgeStaleAccounts.WithActivitySink(sink)
	return s
}

// Repository exposes the underlying repository manager.
func (s *Subsystem) Repository() RepositoryManager { return s.repo }

// Cache exposes the credential cache.
func (s *Subsystem) Cache() CredentialCache { return s.cache }

// Resolver exposes the credential resolver.
func (s *Subsystem) Resolver() *CredentialResolver { return s.resolver }

// TokenService exposes the token service.
func (s *Subsystem) TokenService() TokenService { return s.tokens }

// Authenticator exposes the login flow.
func (s *Subsystem) Authenticator() Authenticator { return s.auther }

// Login authenticates an identifier/password pair. See Auther.Login.
func (s *Subsystem) Login(ctx context.Context, identifier, password string) (string, error) {
	return s.auther.Login(ctx, identifier, password)
}

// SessionFromToken validates a raw token and returns its principal.
func (s *Subsystem) SessionFromToken(token string) (Principal, error) {
	return s.auther.SessionFromToken(token)
}

// NewPurgeScheduler returns a scheduler running the purge handler at the
// given interval.
func (s *Subsystem) NewPurgeScheduler(interval time.Duration) *PurgeScheduler {
	return NewPurgeScheduler(s.PurgeStaleAccounts, interval)
}
