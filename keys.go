package authx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeyMaterial is the process-wide signing key pair. It is loaded once and never mutated.
// Verify-only processes hold a KeyMaterial without a private scalar.
type KeyMaterial struct {
	curve   *Curve
	private *big.Int
	public  Point
}

// NewKeyMaterial derives the public point of priv on curve (P-256 when nil).
func NewKeyMaterial(curve *Curve, priv *big.Int) (*KeyMaterial, error) {
	if curve == nil {
		curve = P256()
	}
	if priv == nil || priv.Sign() <= 0 || priv.Cmp(curve.N) >= 0 {
		return nil, newError(ErrCodeInvalidKey, errors.New("private scalar must be in [1, N-1]"))
	}
	return &KeyMaterial{
		curve:   curve,
		private: new(big.Int).Set(priv),
		public:  curve.ScalarBaseMult(priv),
	}, nil
}

// NewPublicKeyMaterial wraps a public point for verification only.
func NewPublicKeyMaterial(curve *Curve, pub Point) (*KeyMaterial, error) {
	if curve == nil {
		curve = P256()
	}
	if !curve.IsOnCurve(pub) {
		return nil, newError(ErrCodeInvalidKey, errors.New("public point is not on the curve"))
	}
	return &KeyMaterial{
		curve:  curve,
		public: Point{X: new(big.Int).Set(pub.X), Y: new(big.Int).Set(pub.Y)},
	}, nil
}

// ParseKeyMaterial loads an EC P-256 JWK. A private JWK yields a signing key pair,
// a public JWK a verify-only KeyMaterial.
func ParseKeyMaterial(data []byte) (*KeyMaterial, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, newError(ErrCodeInvalidKey, err)
	}
	if key.KeyType() != jwa.EC {
		return nil, newError(ErrCodeInvalidKey, fmt.Errorf("unsupported key type %q", key.KeyType()))
	}

	curve := P256()
	switch k := key.(type) {
	case jwk.ECDSAPrivateKey:
		if k.Crv() != jwa.P256 {
			return nil, newError(ErrCodeInvalidKey, fmt.Errorf("unsupported curve %q", k.Crv()))
		}
		var raw ecdsa.PrivateKey
		if err := k.Raw(&raw); err != nil {
			return nil, newError(ErrCodeInvalidKey, err)
		}
		km, err := NewKeyMaterial(curve, raw.D)
		if err != nil {
			return nil, err
		}
		if !km.public.Equal(Point{X: raw.X, Y: raw.Y}) {
			return nil, newError(ErrCodeInvalidKey, errors.New("public point does not match private scalar"))
		}
		return km, nil
	case jwk.ECDSAPublicKey:
		if k.Crv() != jwa.P256 {
			return nil, newError(ErrCodeInvalidKey, fmt.Errorf("unsupported curve %q", k.Crv()))
		}
		var raw ecdsa.PublicKey
		if err := k.Raw(&raw); err != nil {
			return nil, newError(ErrCodeInvalidKey, err)
		}
		return NewPublicKeyMaterial(curve, Point{X: raw.X, Y: raw.Y})
	default:
		return nil, newError(ErrCodeInvalidKey, fmt.Errorf("unexpected key %T", key))
	}
}

// ParsePublicKeyHex loads a verify-only key from a hex SEC1 P-256 point, the form PublicHex prints.
func ParsePublicKeyHex(s string) (*KeyMaterial, error) {
	curve := P256()
	pub, err := curve.ParsePoint(strings.TrimSpace(s))
	if err != nil {
		return nil, newError(ErrCodeInvalidKey, err)
	}
	return NewPublicKeyMaterial(curve, pub)
}

// Curve returns the curve the key lives on.
func (k *KeyMaterial) Curve() *Curve {
	return k.curve
}

// CanSign reports whether the key holds a private scalar.
func (k *KeyMaterial) CanSign() bool {
	return k != nil && k.private != nil && k.private.Sign() > 0
}

// Public returns a copy of the public point.
func (k *KeyMaterial) Public() Point {
	return Point{X: new(big.Int).Set(k.public.X), Y: new(big.Int).Set(k.public.Y)}
}

// PublicHex returns the public point in compressed SEC1 hex.
func (k *KeyMaterial) PublicHex() string {
	return k.curve.FormatPoint(k.public)
}

// PublicJWK renders the public point as a JWK with an RFC 7638 thumbprint key id.
func (k *KeyMaterial) PublicJWK() (jwk.Key, error) {
	key, err := jwk.FromRaw(&ecdsa.PublicKey{Curve: elliptic.P256(), X: k.public.X, Y: k.public.Y})
	if err != nil {
		return nil, fmt.Errorf("public jwk: %w", err)
	}
	thumb, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("thumbprint: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, base64.RawURLEncoding.EncodeToString(thumb)); err != nil {
		return nil, fmt.Errorf("set kid: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, fmt.Errorf("set use: %w", err)
	}
	return key, nil
}

// PublicKeySet returns a JWK Set holding the public key, for distribution to verifiers.
func (k *KeyMaterial) PublicKeySet() (jwk.Set, error) {
	key, err := k.PublicJWK()
	if err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("add key: %w", err)
	}
	return set, nil
}
