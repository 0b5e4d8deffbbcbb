package identity

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Account is the persisted account row. Login is unique and always stored
// lowercase; email is unique with case-insensitive comparison but stored as
// submitted. The password hash never serializes outward.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Login            string     `bun:"login,notnull,unique" json:"login,omitempty"`
	Email            string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash     string     `bun:"password_hash,notnull" json:"-"`
	FirstName        string     `bun:"first_name" json:"first_name,omitempty"`
	LastName         string     `bun:"last_name" json:"last_name,omitempty"`
	LangKey          string     `bun:"lang_key" json:"lang_key,omitempty"`
	ImageURL         string     `bun:"image_url" json:"image_url,omitempty"`
	Activated        bool       `bun:"activated,notnull" json:"activated"`
	ActivationKey    *string    `bun:"activation_key,nullzero" json:"-"`
	ResetKey         *string    `bun:"reset_key,nullzero" json:"-"`
	ResetRequestedAt *time.Time `bun:"reset_requested_at,nullzero" json:"-"`
	Roles            []string   `bun:"roles,type:jsonb" json:"roles,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsPending reports whether the account was registered but never activated.
func (a *Account) IsPending() bool {
	return !a.Activated && a.ActivationKey != nil
}

// MarkActivated transitions the account to Active. The activation key is
// cleared in the same step: activated == true implies activationKey == nil.
func (a *Account) MarkActivated() {
	a.Activated = true
	a.ActivationKey = nil
}

// SetResetKey stamps a fresh reset key together with its request time. The
// pair always travels together.
func (a *Account) SetResetKey(key string, at time.Time) {
	a.ResetKey = &key
	a.ResetRequestedAt = &at
}

// ClearResetKey clears the reset key and its request time together.
func (a *Account) ClearResetKey() {
	a.ResetKey = nil
	a.ResetRequestedAt = nil
}

// NormalizeLogin lowercases the login in place. Every write path calls this
// before persisting.
func (a *Account) NormalizeLogin() {
	a.Login = strings.ToLower(strings.TrimSpace(a.Login))
}

// HasRole reports whether the account carries the exact role name.
func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CacheEntry is the ephemeral projection of an Account owned by the
// CredentialCache. It carries no authoritative state; it is always
// reconstructible from the repository.
type CacheEntry struct {
	ID           int64
	Login        string
	Email        string
	PasswordHash string
	Activated    bool
	Roles        []string
}

// EntryFromAccount builds the cache projection for an account. The role slice
// is copied so later mutations of the account do not leak into the cache.
func EntryFromAccount(account *Account) *CacheEntry {
	if account == nil {
		return nil
	}
	return &CacheEntry{
		ID:           account.ID,
		Login:        account.Login,
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		Activated:    account.Activated,
		Roles:        append([]string(nil), account.Roles...),
	}
}

// Principal converts a cache entry into the request-scoped principal shape.
func (e *CacheEntry) Principal() Principal {
	return Principal{
		Login: e.Login,
		Roles: append([]string(nil), e.Roles...),
	}
}
