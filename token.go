package authx

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"
)

// maxTokenSize bounds the wire size of a token before any decoding happens.
const maxTokenSize = 8 * 1024

// transportEncoding rejects non-zero padding bits so every token has exactly one wire form.
var transportEncoding = base64.StdEncoding.Strict()

// SignedToken is a decoded token. Decoding does not check expiry or the signature.
type SignedToken struct {
	Claims    Claims
	SignedAt  time.Time
	InvalidAt time.Time
	Signature []byte

	signedAt  any
	invalidAt any
}

// Expired reports whether now is strictly after InvalidAt.
func (t *SignedToken) Expired(now time.Time) bool {
	return now.After(t.InvalidAt)
}

// TokenService issues and verifies bearer tokens signed with the process key material.
//
// Wire format: base64(canonical({...claims, signedAt, invalidAt, signature})) where the
// signature is base64(fixed-width signature) over canonical({...claims, signedAt, invalidAt}).
type TokenService struct {
	engine *SignatureEngine
	keys   *KeyMaterial
	now    func() time.Time
}

// TokenServiceOption customizes a TokenService.
type TokenServiceOption func(*TokenService)

// WithClock overrides the wall clock used for stamping and expiry checks.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// WithSignatureEngine overrides the engine, e.g. to inject a nonce source.
func WithSignatureEngine(engine *SignatureEngine) TokenServiceOption {
	return func(s *TokenService) {
		s.engine = engine
	}
}

// NewTokenService builds a token service over keys. keys may be verify-only.
func NewTokenService(keys *KeyMaterial, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		keys: keys,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		var curve *Curve
		if keys != nil {
			curve = keys.curve
		}
		s.engine = NewSignatureEngine(curve)
	}
	return s
}

// Create signs claims into a token valid for duration from now.
// The caller's claims are not modified.
func (s *TokenService) Create(claims Claims, duration time.Duration) (string, error) {
	if !s.keys.CanSign() {
		return "", newError(ErrCodeMissingKey, nil)
	}
	if duration <= 0 {
		return "", newError(ErrCodeInvalidDuration, fmt.Errorf("got %s", duration))
	}
	if err := claims.validate(); err != nil {
		return "", newError(ErrCodeInvalidClaims, err)
	}

	now := s.now()
	msg := claims.Clone()
	msg[claimSignedAt] = unixSeconds(now)
	msg[claimInvalidAt] = unixSeconds(now.Add(duration))

	body, err := EncodeCanonical(msg)
	if err != nil {
		return "", newError(ErrCodeInvalidClaims, err)
	}
	sig, err := s.engine.CreateSignature(body, s.keys.private)
	if err != nil {
		return "", err
	}
	raw, err := s.engine.EncodeSignature(sig)
	if err != nil {
		return "", err
	}
	msg[claimSignature] = transportEncoding.EncodeToString(raw)

	full, err := EncodeCanonical(msg)
	if err != nil {
		return "", newError(ErrCodeInvalidClaims, err)
	}
	return transportEncoding.EncodeToString(full), nil
}

// Decode parses the wire form without checking expiry or the signature.
func (s *TokenService) Decode(token string) (*SignedToken, error) {
	if token == "" {
		return nil, newError(ErrCodeMissingToken, nil)
	}
	if len(token) > maxTokenSize {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("token exceeds %d bytes", maxTokenSize))
	}
	body, err := transportEncoding.DecodeString(token)
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, err)
	}
	msg, err := DecodeCanonicalObject(body)
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, err)
	}

	signedAt, ok := timestampField(msg, claimSignedAt)
	if !ok {
		return nil, newError(ErrCodeMalformedToken, errors.New("signedAt missing or not a number"))
	}
	invalidAt, ok := timestampField(msg, claimInvalidAt)
	if !ok {
		return nil, newError(ErrCodeMalformedToken, errors.New("invalidAt missing or not a number"))
	}
	encodedSig, ok := msg.String(claimSignature)
	if !ok {
		return nil, newError(ErrCodeMalformedToken, errors.New("signature missing or not a string"))
	}
	sig, err := transportEncoding.DecodeString(encodedSig)
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("signature: %w", err))
	}
	if len(sig) != s.engine.SignatureSize() {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("signature is %d bytes, want %d", len(sig), s.engine.SignatureSize()))
	}

	delete(msg, claimSignedAt)
	delete(msg, claimInvalidAt)
	delete(msg, claimSignature)
	return &SignedToken{
		Claims:    msg,
		SignedAt:  fromUnixSeconds(toFloat(signedAt)),
		InvalidAt: fromUnixSeconds(toFloat(invalidAt)),
		Signature: sig,
		signedAt:  signedAt,
		invalidAt: invalidAt,
	}, nil
}

// Verify checks the token and returns its claims without the signedAt, invalidAt and
// signature fields. Failures are *Error values with one of the token failure codes.
// Expiry is strict: a token is dead once now > invalidAt, with no grace window.
func (s *TokenService) Verify(token string) (Claims, error) {
	if s.keys == nil {
		return nil, newError(ErrCodeMissingKey, errors.New("no public key configured"))
	}
	decoded, err := s.Decode(token)
	if err != nil {
		return nil, err
	}
	if decoded.Expired(s.now()) {
		return nil, newError(ErrCodeExpired, nil)
	}

	sig, err := s.engine.DecodeSignature(decoded.Signature)
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, err)
	}

	// Re-encode exactly what was signed: the claims plus the original timestamp values.
	msg := decoded.Claims.Clone()
	msg[claimSignedAt] = decoded.signedAt
	msg[claimInvalidAt] = decoded.invalidAt
	body, err := EncodeCanonical(msg)
	if err != nil {
		return nil, newError(ErrCodeMalformedToken, err)
	}
	if !s.engine.VerifySignature(body, sig, s.keys.public) {
		return nil, newError(ErrCodeInvalidSignature, nil)
	}
	return decoded.Claims, nil
}

func timestampField(msg Claims, key string) (any, bool) {
	switch v := msg[key].(type) {
	case int64:
		return v, true
	case float64:
		return v, true
	}
	return nil, false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
