package authx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenFactory allows callers to override how tokens are minted.
type TokenFactory func(context.Context, string, ProviderParams) (oauth2.TokenSource, error)

// ProviderConfig defines how tokens should be issued by default.
type ProviderConfig struct {
	Tokens       *TokenService
	Level        AuthorizationLevel
	Duration     time.Duration
	TokenFactory TokenFactory
}

// Provider issues bearer tokens for principals and reuses them until they are about to expire.
// It caches token sources per (subject, level, game, duration) combination, so repeated
// requests for the same scoped temporary token get the same string back.
type Provider struct {
	mu       sync.RWMutex
	tokens   *TokenService
	factory  TokenFactory
	entries  map[providerKey]*tokenSourceEntry
	defaults ProviderParams
}

type providerKey struct {
	Subject  string
	Level    AuthorizationLevel
	GameID   string
	Duration time.Duration
}

type tokenSourceEntry struct {
	source oauth2.TokenSource
}

// ProviderParams describes the token minted for one Token call.
type ProviderParams struct {
	Level    AuthorizationLevel
	GameID   string
	Duration time.Duration
}

// TokenOption customizes the behaviour for a single Token call.
type TokenOption func(*ProviderParams)

// WithGame scopes the token to a game.
func WithGame(gameID string) TokenOption {
	return func(p *ProviderParams) {
		p.GameID = gameID
	}
}

// WithLevel overrides the authorization level of the token.
func WithLevel(level AuthorizationLevel) TokenOption {
	return func(p *ProviderParams) {
		p.Level = level
	}
}

// WithDuration overrides the token lifetime.
func WithDuration(d time.Duration) TokenOption {
	return func(p *ProviderParams) {
		p.Duration = d
	}
}

// NewProvider constructs a Provider using the supplied defaults.
// Without overrides it mints scoped temporary tokens valid for one hour.
func NewProvider(cfg ProviderConfig) *Provider {
	p := &Provider{
		tokens:  cfg.Tokens,
		factory: cfg.TokenFactory,
		entries: make(map[providerKey]*tokenSourceEntry),
		defaults: ProviderParams{
			Level:    cfg.Level,
			Duration: cfg.Duration,
		},
	}
	if p.defaults.Duration <= 0 {
		p.defaults.Duration = defaultScopedDuration
	}
	if p.factory == nil {
		p.factory = p.issuingFactory
	}
	return p
}

// Token returns a bearer token for subject.
func (p *Provider) Token(ctx context.Context, subject string, opts ...TokenOption) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}

	params := p.defaults
	for _, opt := range opts {
		opt(&params)
	}

	key := providerKey{
		Subject:  subject,
		Level:    params.Level,
		GameID:   params.GameID,
		Duration: params.Duration,
	}

	entry, err := p.getOrCreate(ctx, key, params)
	if err != nil {
		return "", err
	}

	tok, err := entry.source.Token()
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access token returned")
	}
	return tok.AccessToken, nil
}

func (p *Provider) getOrCreate(ctx context.Context, key providerKey, params ProviderParams) (*tokenSourceEntry, error) {
	p.mu.RLock()
	entry, ok := p.entries[key]
	p.mu.RUnlock()
	if ok {
		return entry, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok = p.entries[key]; ok {
		return entry, nil
	}

	ts, err := p.factory(persistentContext(ctx), key.Subject, params)
	if err != nil {
		return nil, err
	}
	entry = &tokenSourceEntry{source: oauth2.ReuseTokenSource(nil, ts)}
	p.entries[key] = entry
	return entry, nil
}

func (p *Provider) issuingFactory(_ context.Context, subject string, params ProviderParams) (oauth2.TokenSource, error) {
	if p.tokens == nil {
		return nil, errors.New("no token service configured")
	}
	if params.Duration <= 0 {
		return nil, newError(ErrCodeInvalidDuration, fmt.Errorf("got %s", params.Duration))
	}
	claims := NewClaims(subject, params.Level)
	if params.GameID != "" {
		claims[ClaimGame] = params.GameID
	}
	return &issuingTokenSource{tokens: p.tokens, claims: claims, duration: params.Duration}, nil
}

// issuingTokenSource signs a fresh token on every call; oauth2.ReuseTokenSource in front of
// it decides when a new one is needed.
type issuingTokenSource struct {
	tokens   *TokenService
	claims   Claims
	duration time.Duration
}

func (s *issuingTokenSource) Token() (*oauth2.Token, error) {
	raw, err := s.tokens.Create(s.claims, s.duration)
	if err != nil {
		return nil, err
	}
	decoded, err := s.tokens.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
		Expiry:      decoded.InvalidAt,
	}, nil
}

// persistentContext keeps the caller's values but drops its deadline and cancellation, so a
// cached token source outlives the request that created it.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
