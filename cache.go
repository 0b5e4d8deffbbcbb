package identity

import (
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultCacheTTL is the backstop TTL for cached credential entries.
// Correctness never depends on it: every mutation evicts its keys explicitly.
const DefaultCacheTTL = 10 * time.Minute

type cachedEntry struct {
	entry    *CacheEntry
	storedAt time.Time
}

// MemoryCredentialCache is the default CredentialCache: two concurrent maps
// keyed by login and by email. Reads are lock free; writes and evictions are
// per-key atomic store/delete, so an eviction is never reordered after a
// later read of the same key. Email keys are case folded.
type MemoryCredentialCache struct {
	byLogin *xsync.MapOf[string, cachedEntry]
	byEmail *xsync.MapOf[string, cachedEntry]
	ttl     time.Duration
	now     func() time.Time
}

var _ CredentialCache = (*MemoryCredentialCache)(nil)

// CredentialCacheOption customizes cache construction.
type CredentialCacheOption func(*MemoryCredentialCache)

// WithCacheTTL overrides the backstop TTL. Zero disables it.
func WithCacheTTL(ttl time.Duration) CredentialCacheOption {
	return func(c *MemoryCredentialCache) {
		c.ttl = ttl
	}
}

// WithCacheClock injects a custom clock (useful for tests).
func WithCacheClock(clock func() time.Time) CredentialCacheOption {
	return func(c *MemoryCredentialCache) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewCredentialCache returns the default in-process credential cache.
func NewCredentialCache(opts ...CredentialCacheOption) *MemoryCredentialCache {
	c := &MemoryCredentialCache{
		byLogin: xsync.NewMapOf[string, cachedEntry](),
		byEmail: xsync.NewMapOf[string, cachedEntry](),
		ttl:     DefaultCacheTTL,
		now:     time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// GetByLogin returns the cached entry for a login, if fresh.
func (c *MemoryCredentialCache) GetByLogin(login string) (*CacheEntry, bool) {
	return c.get(c.byLogin, loginKey(login))
}

// GetByEmail returns the cached entry for an email, if fresh.
func (c *MemoryCredentialCache) GetByEmail(email string) (*CacheEntry, bool) {
	return c.get(c.byEmail, emailKey(email))
}

// Put stores the entry under both its login and email keys.
func (c *MemoryCredentialCache) Put(entry *CacheEntry) {
	if entry == nil || entry.Login == "" {
		return
	}

	cached := cachedEntry{entry: entry, storedAt: c.now()}
	c.byLogin.Store(loginKey(entry.Login), cached)
	if entry.Email != "" {
		c.byEmail.Store(emailKey(entry.Email), cached)
	}
}

// Evict removes the entries for the given login and email. Either argument
// may be empty. Mutating operations call this before they are considered
// complete, so the next read-through never observes pre-mutation state.
func (c *MemoryCredentialCache) Evict(login, email string) {
	if login != "" {
		c.byLogin.Delete(loginKey(login))
	}
	if email != "" {
		c.byEmail.Delete(emailKey(email))
	}
}

func (c *MemoryCredentialCache) get(m *xsync.MapOf[string, cachedEntry], key string) (*CacheEntry, bool) {
	cached, ok := m.Load(key)
	if !ok {
		return nil, false
	}

	if c.ttl > 0 && c.now().Sub(cached.storedAt) > c.ttl {
		// Stale backstop hit; drop it and report a miss so the caller reads
		// through to the repository.
		m.Delete(key)
		return nil, false
	}

	return cached.entry, true
}

func loginKey(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
