package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// CredentialResolver turns a login-or-email string into resolved account and
// role data via cache-then-repository lookup. It backs both the login flow
// and request-scoped identity building.
type CredentialResolver struct {
	accounts Accounts
	cache    CredentialCache
	logger   Logger
	// single retry with backoff for transient read failures; write paths
	// never retry
	retryBackoff time.Duration
}

// ResolverOption customizes resolver construction.
type ResolverOption func(*CredentialResolver)

// WithResolverLogger overrides the resolver logger.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *CredentialResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverRetryBackoff overrides the pause before the single read retry.
func WithResolverRetryBackoff(backoff time.Duration) ResolverOption {
	return func(r *CredentialResolver) {
		r.retryBackoff = backoff
	}
}

// NewCredentialResolver builds a resolver over the given repository and cache.
func NewCredentialResolver(accounts Accounts, cache CredentialCache, opts ...ResolverOption) *CredentialResolver {
	r := &CredentialResolver{
		accounts:     accounts,
		cache:        cache,
		logger:       defLogger{},
		retryBackoff: 50 * time.Millisecond,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Resolve returns the credential entry for an identifier. Identifiers that
// parse as an email address are matched case-insensitively against emails;
// anything else is case-folded and matched against logins.
//
// Outcomes: (entry, nil) for an activated account; (entry,
// ErrAccountNotActivated) for a pending one, which login flows must collapse
// to a generic failure outward; (nil, ErrAccountNotFound) otherwise.
func (r *CredentialResolver) Resolve(ctx context.Context, identifier string) (*CacheEntry, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrAccountNotFound
	}

	var entry *CacheEntry
	var ok bool

	byEmail := isEmail(identifier)
	if byEmail {
		entry, ok = r.cache.GetByEmail(identifier)
	} else {
		identifier = strings.ToLower(identifier)
		entry, ok = r.cache.GetByLogin(identifier)
	}

	if !ok {
		account, err := r.lookup(ctx, identifier, byEmail)
		if err != nil {
			if IsRecordNotFound(err) {
				return nil, ErrAccountNotFound
			}
			return nil, err
		}

		entry = EntryFromAccount(account)
		r.cache.Put(entry)
	}

	if !entry.Activated {
		r.logger.Debug("resolved account %s is not activated", entry.Login)
		return entry, ErrAccountNotActivated
	}

	return entry, nil
}

// ResolvePrincipal is a convenience wrapper returning the principal shape for
// an activated account.
func (r *CredentialResolver) ResolvePrincipal(ctx context.Context, identifier string) (Principal, error) {
	entry, err := r.Resolve(ctx, identifier)
	if err != nil {
		return Principal{}, err
	}
	return entry.Principal(), nil
}

func (r *CredentialResolver) lookup(ctx context.Context, identifier string, byEmail bool) (*Account, error) {
	account, err := r.find(ctx, identifier, byEmail)
	if err == nil || IsRecordNotFound(err) {
		return account, err
	}

	// one retry for transient repository failures on the read path
	r.logger.Warn("account lookup failed, retrying once: %v", err)
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during credential resolution")
	case <-time.After(r.retryBackoff):
	}

	return r.find(ctx, identifier, byEmail)
}

func (r *CredentialResolver) find(ctx context.Context, identifier string, byEmail bool) (*Account, error) {
	if byEmail {
		return r.accounts.FindByEmail(ctx, identifier)
	}
	return r.accounts.FindByLogin(ctx, identifier)
}

func isEmail(identifier string) bool {
	addr, err := mail.ParseAddress(identifier)
	return err == nil && addr.Address == identifier
}
