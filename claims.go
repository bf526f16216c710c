package authx

import (
	"fmt"
	"math"
)

// Claim keys understood by the authorization resolver.
const (
	ClaimSubject = "id"
	ClaimLevel   = "authorisation_level"
	ClaimGame    = "gameid"
)

// Keys stamped into every token. Callers cannot supply them.
const (
	claimSignedAt  = "signedAt"
	claimInvalidAt = "invalidAt"
	claimSignature = "signature"
)

// Claims is the identity and capability payload carried by a token.
// Values are primitives: strings, integers, floats and booleans.
type Claims map[string]any

// NewClaims returns the claims of a session token for subject.
func NewClaims(subject string, level AuthorizationLevel) Claims {
	return Claims{
		ClaimSubject: subject,
		ClaimLevel:   int64(level),
	}
}

// NewScopedClaims returns the claims of a scoped temporary token restricted to one game of subject.
func NewScopedClaims(subject, gameID string) Claims {
	c := NewClaims(subject, LevelScopedTemporary)
	if gameID != "" {
		c[ClaimGame] = gameID
	}
	return c
}

// Subject returns the principal id, or "" when absent or not a string.
func (c Claims) Subject() string {
	s, _ := c.String(ClaimSubject)
	return s
}

// String returns the string value stored under key.
func (c Claims) String(key string) (string, bool) {
	v, ok := c[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Level returns the authorization level claim.
func (c Claims) Level() (AuthorizationLevel, bool) {
	switch v := c[ClaimLevel].(type) {
	case AuthorizationLevel:
		return v, true
	case int:
		return AuthorizationLevel(v), true
	case int64:
		return AuthorizationLevel(v), true
	case float64:
		if v == math.Trunc(v) {
			return AuthorizationLevel(int64(v)), true
		}
	}
	return 0, false
}

// Clone returns a shallow copy; claim values are immutable primitives.
func (c Claims) Clone() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// validate rejects reserved keys, values that are not primitives and values whose canonical
// bytes would change after decoding, so every issued token verifies.
func (c Claims) validate() error {
	for k, v := range c {
		switch k {
		case claimSignedAt, claimInvalidAt, claimSignature:
			return fmt.Errorf("claim %q is reserved", k)
		}
		if err := checkString(k); err != nil {
			return fmt.Errorf("claim key: %w", err)
		}
		var err error
		switch val := v.(type) {
		case string:
			err = checkString(val)
		case uint:
			err = checkUint(uint64(val))
		case uint64:
			err = checkUint(val)
		case float32:
			err = checkFloat(float64(val))
		case float64:
			err = checkFloat(val)
		case bool, int, int8, int16, int32, int64, uint8, uint16, uint32, AuthorizationLevel:
		case nil:
			return fmt.Errorf("claim %q is null", k)
		default:
			return fmt.Errorf("claim %q has unsupported type %T", k, v)
		}
		if err != nil {
			return fmt.Errorf("claim %q: %w", k, err)
		}
	}
	return nil
}
