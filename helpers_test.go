package authx

import (
	"math/big"
	"sync"
	"testing"
	"time"
)

// testPrivateHex is the P-256 private key used by the RFC 6979 A.2.5 examples.
const testPrivateHex = "c9afa9d845ba75166b5c215767b1d6934e50c3db36e89b127b8a622b120f6721"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1760000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestKeys(t *testing.T) *KeyMaterial {
	t.Helper()
	priv, ok := new(big.Int).SetString(testPrivateHex, 16)
	if !ok {
		t.Fatal("parse test key")
	}
	keys, err := NewKeyMaterial(P256(), priv)
	if err != nil {
		t.Fatalf("NewKeyMaterial: %v", err)
	}
	return keys
}

func newTestTokenService(t *testing.T, clock *fakeClock) *TokenService {
	t.Helper()
	return NewTokenService(newTestKeys(t), WithClock(clock.Now))
}

func expectCode(t *testing.T, err error, want ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := CodeOf(err); got != want {
		t.Fatalf("expected code %s, got %s (%v)", want, got, err)
	}
}
