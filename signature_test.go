package authx

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"testing"
)

func TestSignatureEngine_SignVerify(t *testing.T) {
	keys := newTestKeys(t)
	engine := NewSignatureEngine(nil)
	msg := []byte(`{"authorisation_level":1,"id":"u1"}`)

	sig, err := engine.CreateSignature(msg, keys.private)
	if err != nil {
		t.Fatalf("CreateSignature: %v", err)
	}
	if !engine.VerifySignature(msg, sig, keys.Public()) {
		t.Fatal("valid signature rejected")
	}
	if engine.VerifySignature([]byte(`{"authorisation_level":2,"id":"u1"}`), sig, keys.Public()) {
		t.Fatal("signature accepted for a different message")
	}

	other, err := NewKeyMaterial(nil, big.NewInt(12345))
	if err != nil {
		t.Fatalf("NewKeyMaterial: %v", err)
	}
	if engine.VerifySignature(msg, sig, other.Public()) {
		t.Fatal("signature accepted under a different public key")
	}
}

func TestSignatureEngine_FreshNonces(t *testing.T) {
	keys := newTestKeys(t)
	engine := NewSignatureEngine(nil)
	msg := []byte("same message")

	a, err := engine.CreateSignature(msg, keys.private)
	if err != nil {
		t.Fatalf("CreateSignature: %v", err)
	}
	b, err := engine.CreateSignature(msg, keys.private)
	if err != nil {
		t.Fatalf("CreateSignature: %v", err)
	}
	if a.Cmp(b) == 0 {
		t.Fatal("two signatures of the same message should differ")
	}
}

func TestSignatureEngine_RejectsOutOfRangeComponents(t *testing.T) {
	keys := newTestKeys(t)
	engine := NewSignatureEngine(nil)
	n := engine.Curve().N
	msg := []byte("m")

	cases := map[string]*big.Int{
		"nil":     nil,
		"zero":    big.NewInt(0),
		"r zero":  big.NewInt(5),
		"s zero":  packSignature(big.NewInt(5), big.NewInt(0), n),
		"r = N":   packSignature(n, big.NewInt(1), n),
		"huge":    new(big.Int).Lsh(big.NewInt(1), 600),
		"s = N-1": packSignature(big.NewInt(1), new(big.Int).Sub(n, big.NewInt(1)), n),
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			if engine.VerifySignature(msg, sig, keys.Public()) {
				t.Fatal("bogus signature accepted")
			}
		})
	}
}

func TestSignatureEngine_RejectsOffCurveKey(t *testing.T) {
	keys := newTestKeys(t)
	engine := NewSignatureEngine(nil)
	msg := []byte("m")
	sig, err := engine.CreateSignature(msg, keys.private)
	if err != nil {
		t.Fatalf("CreateSignature: %v", err)
	}
	pub := keys.Public()
	pub.Y.Add(pub.Y, big.NewInt(1))
	if engine.VerifySignature(msg, sig, pub) {
		t.Fatal("signature accepted under an off-curve key")
	}
	if engine.VerifySignature(msg, sig, Point{}) {
		t.Fatal("signature accepted under the point at infinity")
	}
}

func TestSignatureEngine_PrivateKeyRange(t *testing.T) {
	engine := NewSignatureEngine(nil)
	for _, priv := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1), new(big.Int).Set(engine.Curve().N)} {
		_, err := engine.CreateSignature([]byte("m"), priv)
		expectCode(t, err, ErrCodeMissingKey)
	}
}

func TestSignatureEngine_EncodeDecode(t *testing.T) {
	keys := newTestKeys(t)
	engine := NewSignatureEngine(nil)
	if engine.SignatureSize() != 64 {
		t.Fatalf("expected 64-byte signatures, got %d", engine.SignatureSize())
	}

	sig, err := engine.CreateSignature([]byte("m"), keys.private)
	if err != nil {
		t.Fatalf("CreateSignature: %v", err)
	}
	raw, err := engine.EncodeSignature(sig)
	if err != nil {
		t.Fatalf("EncodeSignature: %v", err)
	}
	if len(raw) != engine.SignatureSize() {
		t.Fatalf("encoded length %d", len(raw))
	}
	back, err := engine.DecodeSignature(raw)
	if err != nil {
		t.Fatalf("DecodeSignature: %v", err)
	}
	if back.Cmp(sig) != 0 {
		t.Fatal("decode mismatch")
	}

	// Small values are left-padded to the fixed width.
	small, err := engine.EncodeSignature(big.NewInt(1))
	if err != nil {
		t.Fatalf("EncodeSignature small: %v", err)
	}
	if len(small) != 64 || small[63] != 1 || !bytes.Equal(small[:63], make([]byte, 63)) {
		t.Fatalf("unexpected padding: %x", small)
	}

	if _, err := engine.DecodeSignature(raw[:63]); err == nil {
		t.Fatal("expected error for short signature")
	}
	if _, err := engine.DecodeSignature(append(raw, 0)); err == nil {
		t.Fatal("expected error for long signature")
	}
	if _, err := engine.EncodeSignature(new(big.Int).Lsh(big.NewInt(1), 512)); err == nil {
		t.Fatal("expected error for oversized signature")
	}
}

func TestSignatureEngine_InteropWithStandardECDSA(t *testing.T) {
	keys := newTestKeys(t)
	engine := NewSignatureEngine(nil)
	n := engine.Curve().N
	msg := []byte(`{"id":"interop"}`)
	digest := sha256.Sum256(msg)

	std := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: elliptic.P256(), X: keys.public.X, Y: keys.public.Y},
		D:         keys.private,
	}

	sig, err := engine.CreateSignature(msg, keys.private)
	if err != nil {
		t.Fatalf("CreateSignature: %v", err)
	}
	r, s := unpackSignature(sig, n)
	if !ecdsa.Verify(&std.PublicKey, digest[:], r, s) {
		t.Fatal("crypto/ecdsa rejected our signature")
	}

	r2, s2, err := ecdsa.Sign(rand.Reader, std, digest[:])
	if err != nil {
		t.Fatalf("ecdsa.Sign: %v", err)
	}
	if !engine.VerifySignature(msg, packSignature(r2, s2, n), keys.Public()) {
		t.Fatal("engine rejected a crypto/ecdsa signature")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errReaderFailed
}

var errReaderFailed = errors.New("reader failed")

func TestSignatureEngine_NonceSourceFailure(t *testing.T) {
	keys := newTestKeys(t)
	engine := NewSignatureEngine(nil, WithRandom(failingReader{}))
	_, err := engine.CreateSignature([]byte("m"), keys.private)
	if !errors.Is(err, errReaderFailed) {
		t.Fatalf("expected nonce source error, got %v", err)
	}
}
