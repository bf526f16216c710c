package authx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
)

const (
	defaultGoogleIssuer      = "https://accounts.google.com"
	defaultFederationTimeout = 5 * time.Second
)

var googleValidate = idtoken.Validate

// PrincipalLookup maps a verified Google identity to the local principal's session claims.
// Returning an error rejects the exchange.
type PrincipalLookup func(ctx context.Context, payload *idtoken.Payload) (Claims, error)

// FederationConfig contains validation parameters for Google sign-in.
type FederationConfig struct {
	Audience string
	Issuer   string
	Timeout  time.Duration
	Duration time.Duration
}

// normalize sets default values for optional fields.
func (c *FederationConfig) normalize() {
	if c.Issuer == "" {
		c.Issuer = defaultGoogleIssuer
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultFederationTimeout
	}
	if c.Duration <= 0 {
		c.Duration = defaultSessionDuration
	}
}

// Federation exchanges Google ID tokens for local session tokens.
type Federation struct {
	cfg    FederationConfig
	tokens *TokenService
	lookup PrincipalLookup
}

// NewFederation builds a Federation issuing session tokens with tokens.
func NewFederation(cfg FederationConfig, tokens *TokenService, lookup PrincipalLookup) (*Federation, error) {
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}
	if tokens == nil || lookup == nil {
		return nil, errors.New("token service and principal lookup are required")
	}
	cfg.normalize()
	return &Federation{cfg: cfg, tokens: tokens, lookup: lookup}, nil
}

// Exchange validates idToken with Google and returns a session token for the mapped principal.
func (f *Federation) Exchange(ctx context.Context, idToken string) (string, Claims, error) {
	if idToken == "" {
		return "", nil, newError(ErrCodeMissingToken, nil)
	}

	validateCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	payload, err := googleValidate(validateCtx, idToken, f.cfg.Audience)
	if err != nil {
		return "", nil, mapGoogleError(err)
	}
	if !strings.EqualFold(payload.Issuer, f.cfg.Issuer) {
		return "", nil, newError(ErrCodeFederationFailed, fmt.Errorf("issuer mismatch: got %s, want %s", payload.Issuer, f.cfg.Issuer))
	}

	claims, err := f.lookup(ctx, payload)
	if err != nil {
		return "", nil, newError(ErrCodeFederationFailed, err)
	}
	token, err := f.tokens.Create(claims, f.cfg.Duration)
	if err != nil {
		return "", nil, err
	}
	return token, claims.Clone(), nil
}

func mapGoogleError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "token expired"):
		return newError(ErrCodeExpired, err)
	case strings.Contains(msg, "audience provided does not match"):
		return newError(ErrCodeFederationFailed, err)
	case strings.Contains(msg, "could not find matching cert"):
		return newError(ErrCodeInvalidSignature, err)
	case strings.Contains(msg, "invalid token"), strings.Contains(msg, "unable to decode JWT"):
		return newError(ErrCodeMalformedToken, err)
	}
	return newError(ErrCodeFederationFailed, err)
}
