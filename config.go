package identity

import "time"

// Config holds identity subsystem options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() time.Duration
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetResetKeyValidity() time.Duration
	GetPurgeAge() time.Duration
	GetBcryptCost() int
}

// SimpleConfig is a plain-struct Config implementation.
type SimpleConfig struct {
	SigningKey       string
	SigningMethod    string
	ContextKey       string
	TokenExpiration  time.Duration
	TokenLookup      string
	AuthScheme       string
	Issuer           string
	Audience         []string
	ResetKeyValidity time.Duration
	PurgeAge         time.Duration
	BcryptCost       int
}

var _ Config = (*SimpleConfig)(nil)

// NewDefaultConfig returns a config with the reference policy defaults: 24h
// tokens, 24h reset key validity, 30 day purge age.
func NewDefaultConfig(signingKey string) *SimpleConfig {
	return &SimpleConfig{
		SigningKey:       signingKey,
		SigningMethod:    "HS256",
		ContextKey:       "identity",
		TokenExpiration:  24 * time.Hour,
		TokenLookup:      "header:Authorization",
		AuthScheme:       "Bearer",
		ResetKeyValidity: 24 * time.Hour,
		PurgeAge:         30 * 24 * time.Hour,
		BcryptCost:       DefaultBcryptCost,
	}
}

func (c *SimpleConfig) GetSigningKey() string    { return c.SigningKey }
func (c *SimpleConfig) GetSigningMethod() string { return c.SigningMethod }

func (c *SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "identity"
	}
	return c.ContextKey
}

func (c *SimpleConfig) GetTokenExpiration() time.Duration {
	if c.TokenExpiration <= 0 {
		return 24 * time.Hour
	}
	return c.TokenExpiration
}

func (c *SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization"
	}
	return c.TokenLookup
}

func (c *SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c *SimpleConfig) GetIssuer() string     { return c.Issuer }
func (c *SimpleConfig) GetAudience() []string { return c.Audience }

func (c *SimpleConfig) GetResetKeyValidity() time.Duration {
	if c.ResetKeyValidity <= 0 {
		return 24 * time.Hour
	}
	return c.ResetKeyValidity
}

func (c *SimpleConfig) GetPurgeAge() time.Duration {
	if c.PurgeAge <= 0 {
		return 30 * 24 * time.Hour
	}
	return c.PurgeAge
}

func (c *SimpleConfig) GetBcryptCost() int {
	if c.BcryptCost <= 0 {
		return DefaultBcryptCost
	}
	return c.BcryptCost
}
