package authx

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultSessionDuration = 24 * time.Hour
	defaultScopedDuration  = time.Hour
)

// Config describes how the auth core is assembled at process start.
type Config struct {
	// KeyFile is a path to an EC P-256 JWK; KeyJWK holds the JWK inline and wins over KeyFile.
	KeyFile string
	KeyJWK  string
	// PublicKeyHex is a SEC1 hex point for verify-only processes, used when no JWK is set.
	PublicKeyHex string

	SessionDuration time.Duration
	ScopedDuration  time.Duration
	SaltLength      int
	SelfAlias       string

	SessionCookie string
	ScopedCookie  string
	CookieDomain  string
}

// normalize sets default values for optional fields.
func (c *Config) normalize() {
	if c.SessionDuration <= 0 {
		c.SessionDuration = defaultSessionDuration
	}
	if c.ScopedDuration <= 0 {
		c.ScopedDuration = defaultScopedDuration
	}
	if c.SaltLength <= 0 {
		c.SaltLength = DefaultSaltLength
	}
	if c.SelfAlias == "" {
		c.SelfAlias = DefaultSelfAlias
	}
	if c.SessionCookie == "" {
		c.SessionCookie = DefaultSessionCookie
	}
	if c.ScopedCookie == "" {
		c.ScopedCookie = DefaultScopedCookie
	}
}

// validate ensures the configuration is usable.
func (c Config) validate() error {
	switch {
	case c.KeyFile == "" && strings.TrimSpace(c.KeyJWK) == "" && strings.TrimSpace(c.PublicKeyHex) == "":
		return errors.New("key file, inline key or public key hex is required")
	case c.SessionCookie == c.ScopedCookie:
		return fmt.Errorf("session and scoped cookies must differ, both are %q", c.SessionCookie)
	case c.ScopedDuration > c.SessionDuration:
		return errors.New("scoped duration must not exceed session duration")
	}
	return nil
}

// LoadKeyMaterial reads the configured key: KeyJWK, then KeyFile, then PublicKeyHex.
func (c Config) LoadKeyMaterial() (*KeyMaterial, error) {
	if data := strings.TrimSpace(c.KeyJWK); data != "" {
		return ParseKeyMaterial([]byte(data))
	}
	if c.KeyFile == "" {
		return ParsePublicKeyHex(c.PublicKeyHex)
	}
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParseKeyMaterial(data)
}

// Core bundles the components assembled from a Config.
type Core struct {
	Config     Config
	Keys       *KeyMaterial
	Tokens     *TokenService
	Passwords  *PasswordHasher
	Resolver   *Resolver
	Middleware *Middleware
}

// New assembles the auth core: the key material is loaded once here and shared by reference.
func New(cfg Config, opts ...TokenServiceOption) (*Core, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	keys, err := cfg.LoadKeyMaterial()
	if err != nil {
		return nil, err
	}

	tokens := NewTokenService(keys, opts...)
	resolver := NewResolver(tokens, WithSelfAlias(cfg.SelfAlias))
	return &Core{
		Config:     cfg,
		Keys:       keys,
		Tokens:     tokens,
		Passwords:  NewPasswordHasher(WithSaltLength(cfg.SaltLength)),
		Resolver:   resolver,
		Middleware: NewMiddleware(resolver, WithCookieNames(cfg.SessionCookie, cfg.ScopedCookie)),
	}, nil
}

// IssueSession mints a session token for subject at level.
func (c *Core) IssueSession(subject string, level AuthorizationLevel) (string, error) {
	return c.Tokens.Create(NewClaims(subject, level), c.Config.SessionDuration)
}

// IssueScoped mints a scoped temporary token for subject restricted to gameID.
func (c *Core) IssueScoped(subject, gameID string) (string, error) {
	return c.Tokens.Create(NewScopedClaims(subject, gameID), c.Config.ScopedDuration)
}
