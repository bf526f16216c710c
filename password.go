package authx

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// DefaultSaltLength is the salt width in bytes.
const DefaultSaltLength = 16

// minPasswordWidth is the byte width used for a password whose integer value is zero.
const minPasswordWidth = 1

// PasswordRecord is the stored form of a password: SHA-256 digest plus the salt it was made with.
type PasswordRecord struct {
	Digest [sha256.Size]byte
	Salt   *big.Int
}

// String renders the record as "<hex-digest> <decimal-salt>".
func (r PasswordRecord) String() string {
	salt := "0"
	if r.Salt != nil {
		salt = r.Salt.String()
	}
	return hex.EncodeToString(r.Digest[:]) + " " + salt
}

// ParsePasswordRecord parses the "<hex-digest> <decimal-salt>" form.
// A parse failure means the stored record is corrupt.
func ParsePasswordRecord(s string) (PasswordRecord, error) {
	fields := strings.Split(s, " ")
	if len(fields) != 2 {
		return PasswordRecord{}, newError(ErrCodeMalformedPasswordRecord, fmt.Errorf("expected 2 fields, got %d", len(fields)))
	}
	digest, err := hex.DecodeString(fields[0])
	if err != nil {
		return PasswordRecord{}, newError(ErrCodeMalformedPasswordRecord, fmt.Errorf("digest: %w", err))
	}
	if len(digest) != sha256.Size {
		return PasswordRecord{}, newError(ErrCodeMalformedPasswordRecord, fmt.Errorf("digest is %d bytes", len(digest)))
	}
	salt, ok := new(big.Int).SetString(fields[1], 10)
	if !ok || salt.Sign() < 0 {
		return PasswordRecord{}, newError(ErrCodeMalformedPasswordRecord, errors.New("salt is not a non-negative decimal integer"))
	}

	var rec PasswordRecord
	copy(rec.Digest[:], digest)
	rec.Salt = salt
	return rec, nil
}

// PasswordHasher hashes passwords with a random per-password salt.
//
// The hashed message is the password read as a big-endian integer, shifted left by the salt
// width and OR'd with the salt: password bytes in the high-order positions, the fixed-width
// salt in the low-order ones.
type PasswordHasher struct {
	saltLength int
	rand       io.Reader
}

// HasherOption customizes a PasswordHasher.
type HasherOption func(*PasswordHasher)

// WithSaltLength sets the salt width in bytes.
func WithSaltLength(n int) HasherOption {
	return func(h *PasswordHasher) {
		h.saltLength = n
	}
}

// WithSaltSource overrides the salt source. It must be cryptographically secure.
func WithSaltSource(r io.Reader) HasherOption {
	return func(h *PasswordHasher) {
		h.rand = r
	}
}

// NewPasswordHasher constructs a hasher with DefaultSaltLength salts from crypto/rand.
func NewPasswordHasher(opts ...HasherOption) *PasswordHasher {
	h := &PasswordHasher{
		saltLength: DefaultSaltLength,
		rand:       rand.Reader,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.saltLength <= 0 {
		h.saltLength = DefaultSaltLength
	}
	return h
}

// Create hashes password with a freshly drawn salt.
func (h *PasswordHasher) Create(password string) (PasswordRecord, error) {
	raw := make([]byte, h.saltLength)
	if _, err := io.ReadFull(h.rand, raw); err != nil {
		return PasswordRecord{}, fmt.Errorf("authx: read salt: %w", err)
	}
	return h.CreateWithSalt(password, new(big.Int).SetBytes(raw))
}

// CreateWithSalt hashes password with the given salt.
func (h *PasswordHasher) CreateWithSalt(password string, salt *big.Int) (PasswordRecord, error) {
	if salt == nil || salt.Sign() < 0 || salt.BitLen() > h.saltLength*8 {
		return PasswordRecord{}, newError(ErrCodeInvalidSalt, fmt.Errorf("salt must fit in %d bytes", h.saltLength))
	}
	return PasswordRecord{
		Digest: sha256.Sum256(h.combine(password, salt)),
		Salt:   new(big.Int).Set(salt),
	}, nil
}

// Check reports whether password matches rec. The digest comparison is constant time.
func (h *PasswordHasher) Check(password string, rec PasswordRecord) bool {
	candidate, err := h.CreateWithSalt(password, rec.Salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(candidate.Digest[:], rec.Digest[:]) == 1
}

// CheckEncoded parses a stored record and checks password against it.
func (h *PasswordHasher) CheckEncoded(password, encoded string) (bool, error) {
	rec, err := ParsePasswordRecord(encoded)
	if err != nil {
		return false, err
	}
	return h.Check(password, rec), nil
}

// combine packs password and salt into one big-endian byte string. The password part is
// sized from the bit length of its integer value with a floor of minPasswordWidth, so an
// empty or all-zero password still occupies a fixed, well-defined width.
func (h *PasswordHasher) combine(password string, salt *big.Int) []byte {
	numeric := new(big.Int).SetBytes([]byte(password))
	width := (numeric.BitLen() + 7) / 8
	if width < minPasswordWidth {
		width = minPasswordWidth
	}

	combined := new(big.Int).Lsh(numeric, uint(h.saltLength*8))
	combined.Or(combined, salt)
	return combined.FillBytes(make([]byte, width+h.saltLength))
}
