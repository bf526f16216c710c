package authx

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// maxNonceAttempts bounds the retries when a nonce yields r == 0 or s == 0.
const maxNonceAttempts = 64

// SignatureEngine creates and verifies ECDSA-family signatures over a fixed curve.
//
// A signature is the pair (r, s), both in [1, N-1], packed into one integer as r·N + s and
// transported as a big-endian byte string of exactly SignatureSize bytes.
type SignatureEngine struct {
	curve *Curve
	rand  io.Reader
}

// EngineOption customizes a SignatureEngine.
type EngineOption func(*SignatureEngine)

// WithRandom overrides the nonce source. It must be cryptographically secure.
func WithRandom(r io.Reader) EngineOption {
	return func(e *SignatureEngine) {
		e.rand = r
	}
}

// NewSignatureEngine returns an engine over curve, or P-256 when curve is nil.
func NewSignatureEngine(curve *Curve, opts ...EngineOption) *SignatureEngine {
	if curve == nil {
		curve = P256()
	}
	e := &SignatureEngine{curve: curve, rand: rand.Reader}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Curve returns the engine's domain.
func (e *SignatureEngine) Curve() *Curve {
	return e.curve
}

// SignatureSize is the fixed byte width of an encoded signature: 2·ceil(bitlen(N)/8).
func (e *SignatureEngine) SignatureSize() int {
	return 2 * e.curve.ByteLen()
}

// CreateSignature signs msg with the private scalar priv and returns the packed signature.
func (e *SignatureEngine) CreateSignature(msg []byte, priv *big.Int) (*big.Int, error) {
	n := e.curve.N
	if priv == nil || priv.Sign() <= 0 || priv.Cmp(n) >= 0 {
		return nil, newError(ErrCodeMissingKey, errors.New("private scalar out of range"))
	}
	z := e.hashToInt(msg)

	for attempt := 0; attempt < maxNonceAttempts; attempt++ {
		k, err := e.nonce()
		if err != nil {
			return nil, err
		}

		kG := e.curve.ScalarBaseMult(k)
		r := new(big.Int).Mod(kG.X, n)
		if r.Sign() == 0 {
			continue
		}

		// s = k⁻¹ (z + r·d) mod N
		s := new(big.Int).Mul(r, priv)
		s.Add(s, z)
		s.Mul(s, new(big.Int).ModInverse(k, n))
		s.Mod(s, n)
		if s.Sign() == 0 {
			continue
		}

		return packSignature(r, s, n), nil
	}
	return nil, errors.New("authx: could not produce a signature")
}

// VerifySignature reports whether sig is a valid signature of msg under pub.
func (e *SignatureEngine) VerifySignature(msg []byte, sig *big.Int, pub Point) bool {
	if sig == nil || sig.Sign() <= 0 {
		return false
	}
	n := e.curve.N
	r, s := unpackSignature(sig, n)
	if r.Sign() <= 0 || r.Cmp(n) >= 0 || s.Sign() <= 0 || s.Cmp(n) >= 0 {
		return false
	}
	if !e.curve.IsOnCurve(pub) {
		return false
	}

	z := e.hashToInt(msg)
	w := new(big.Int).ModInverse(s, n)
	u1 := new(big.Int).Mul(z, w)
	u1.Mod(u1, n)
	u2 := new(big.Int).Mul(r, w)
	u2.Mod(u2, n)

	// X = u1·G + u2·Q
	x := e.curve.Add(e.curve.ScalarBaseMult(u1), e.curve.ScalarMult(pub, u2))
	if x.IsInfinity() {
		return false
	}
	v := new(big.Int).Mod(x.X, n)
	return v.Cmp(r) == 0
}

// EncodeSignature renders sig as exactly SignatureSize big-endian bytes.
func (e *SignatureEngine) EncodeSignature(sig *big.Int) ([]byte, error) {
	size := e.SignatureSize()
	if sig == nil || sig.Sign() < 0 || (sig.BitLen()+7)/8 > size {
		return nil, fmt.Errorf("authx: signature does not fit in %d bytes", size)
	}
	return sig.FillBytes(make([]byte, size)), nil
}

// DecodeSignature parses a fixed-width signature, rejecting any other length.
func (e *SignatureEngine) DecodeSignature(b []byte) (*big.Int, error) {
	if size := e.SignatureSize(); len(b) != size {
		return nil, fmt.Errorf("authx: signature is %d bytes, want %d", len(b), size)
	}
	return new(big.Int).SetBytes(b), nil
}

// PublicKey derives the public point of priv.
func (e *SignatureEngine) PublicKey(priv *big.Int) Point {
	return e.curve.ScalarBaseMult(priv)
}

// nonce draws k uniformly from [1, N-1].
func (e *SignatureEngine) nonce() (*big.Int, error) {
	max := new(big.Int).Sub(e.curve.N, big.NewInt(1))
	k, err := rand.Int(e.rand, max)
	if err != nil {
		return nil, fmt.Errorf("authx: read nonce: %w", err)
	}
	return k.Add(k, big.NewInt(1)), nil
}

// hashToInt hashes msg with SHA-256 and keeps the leftmost bitlen(N) bits.
func (e *SignatureEngine) hashToInt(msg []byte) *big.Int {
	digest := sha256.Sum256(msg)
	orderBits := e.curve.N.BitLen()
	orderBytes := (orderBits + 7) / 8
	hash := digest[:]
	if len(hash) > orderBytes {
		hash = hash[:orderBytes]
	}
	z := new(big.Int).SetBytes(hash)
	if excess := len(hash)*8 - orderBits; excess > 0 {
		z.Rsh(z, uint(excess))
	}
	return z
}

func packSignature(r, s, n *big.Int) *big.Int {
	sig := new(big.Int).Mul(r, n)
	return sig.Add(sig, s)
}

func unpackSignature(sig, n *big.Int) (r, s *big.Int) {
	return new(big.Int).QuoRem(sig, n, new(big.Int))
}
