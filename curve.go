package authx

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// Curve is a short Weierstrass curve y² = x³ + a·x + b over the prime field P,
// with base point (Gx, Gy) of prime order N.
type Curve struct {
	Name    string
	P       *big.Int
	A       *big.Int
	B       *big.Int
	Gx      *big.Int
	Gy      *big.Int
	N       *big.Int
	BitSize int
}

// Point is an affine curve point. A Point with nil coordinates is the point at infinity.
type Point struct {
	X *big.Int
	Y *big.Int
}

// IsInfinity reports whether p is the point at infinity.
func (p Point) IsInfinity() bool {
	return p.X == nil || p.Y == nil
}

// Equal reports whether p and q are the same point.
func (p Point) Equal(q Point) bool {
	if p.IsInfinity() || q.IsInfinity() {
		return p.IsInfinity() && q.IsInfinity()
	}
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("authx: bad curve constant " + s)
	}
	return n
}

var p256 = sync.OnceValue(func() *Curve {
	c := &Curve{
		Name:    "P-256",
		P:       mustHex("ffffffff00000001000000000000000000000000ffffffffffffffffffffffff"),
		B:       mustHex("5ac635d8aa3a93e7b3ebbd55769886bc651d06b0cc53b0f63bce3c3e27d2604b"),
		Gx:      mustHex("6b17d1f2e12c4247f8bce6e563a440f277037d812deb33a0f4a13945d898c296"),
		Gy:      mustHex("4fe342e2fe1a7f9b8ee7eb4a7c0f9e162bce33576b315ececbb6406837bf51f5"),
		N:       mustHex("ffffffff00000000ffffffffffffffffbce6faada7179e84f3b9cac2fc632551"),
		BitSize: 256,
	}
	c.A = new(big.Int).Sub(c.P, big.NewInt(3))
	return c
})

// P256 returns the NIST P-256 domain used for token signatures.
// The returned value is shared and must not be modified.
func P256() *Curve {
	return p256()
}

// Generator returns the base point.
func (c *Curve) Generator() Point {
	return Point{X: new(big.Int).Set(c.Gx), Y: new(big.Int).Set(c.Gy)}
}

// ByteLen is the width of one field element or scalar in bytes.
func (c *Curve) ByteLen() int {
	return (c.N.BitLen() + 7) / 8
}

// IsOnCurve reports whether p is a finite point satisfying the curve equation.
func (c *Curve) IsOnCurve(p Point) bool {
	if p.IsInfinity() {
		return false
	}
	if p.X.Sign() < 0 || p.X.Cmp(c.P) >= 0 || p.Y.Sign() < 0 || p.Y.Cmp(c.P) >= 0 {
		return false
	}
	lhs := new(big.Int).Mul(p.Y, p.Y)
	lhs.Mod(lhs, c.P)
	return lhs.Cmp(c.rhs(p.X)) == 0
}

// rhs computes x³ + a·x + b mod P.
func (c *Curve) rhs(x *big.Int) *big.Int {
	x3 := new(big.Int).Mul(x, x)
	x3.Mul(x3, x)
	ax := new(big.Int).Mul(c.A, x)
	x3.Add(x3, ax)
	x3.Add(x3, c.B)
	return x3.Mod(x3, c.P)
}

// Add returns p + q.
func (c *Curve) Add(p, q Point) Point {
	if p.IsInfinity() {
		return q
	}
	if q.IsInfinity() {
		return p
	}
	if p.X.Cmp(q.X) == 0 {
		sum := new(big.Int).Add(p.Y, q.Y)
		if sum.Mod(sum, c.P).Sign() == 0 {
			return Point{}
		}
		return c.Double(p)
	}

	// λ = (y2 - y1) / (x2 - x1)
	num := new(big.Int).Sub(q.Y, p.Y)
	den := new(big.Int).Sub(q.X, p.X)
	den.Mod(den, c.P)
	lambda := num.Mul(num, den.ModInverse(den, c.P))
	lambda.Mod(lambda, c.P)

	return c.finish(lambda, p, q.X)
}

// Double returns 2p.
func (c *Curve) Double(p Point) Point {
	if p.IsInfinity() || p.Y.Sign() == 0 {
		return Point{}
	}

	// λ = (3x² + a) / 2y
	num := new(big.Int).Mul(p.X, p.X)
	num.Mul(num, big.NewInt(3))
	num.Add(num, c.A)
	den := new(big.Int).Lsh(p.Y, 1)
	den.Mod(den, c.P)
	lambda := num.Mul(num, den.ModInverse(den, c.P))
	lambda.Mod(lambda, c.P)

	return c.finish(lambda, p, p.X)
}

// finish computes x3 = λ² - x1 - x2 and y3 = λ(x1 - x3) - y1.
func (c *Curve) finish(lambda *big.Int, p Point, x2 *big.Int) Point {
	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p.X)
	x3.Sub(x3, x2)
	x3.Mod(x3, c.P)

	y3 := new(big.Int).Sub(p.X, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p.Y)
	y3.Mod(y3, c.P)

	return Point{X: x3, Y: y3}
}

// ScalarMult returns k·p using a Montgomery ladder over the full bit length of N,
// so every scalar performs the same sequence of additions and doublings.
func (c *Curve) ScalarMult(p Point, k *big.Int) Point {
	scalar := new(big.Int).Mod(k, c.N)
	r0, r1 := Point{}, p
	for i := c.N.BitLen() - 1; i >= 0; i-- {
		if scalar.Bit(i) == 0 {
			r1 = c.Add(r0, r1)
			r0 = c.Double(r0)
		} else {
			r0 = c.Add(r0, r1)
			r1 = c.Double(r1)
		}
	}
	return r0
}

// ScalarBaseMult returns k·G.
func (c *Curve) ScalarBaseMult(k *big.Int) Point {
	return c.ScalarMult(c.Generator(), k)
}

// FormatPoint encodes p in SEC1 compressed form as lowercase hex.
// The point at infinity encodes as "00".
func (c *Curve) FormatPoint(p Point) string {
	if p.IsInfinity() {
		return "00"
	}
	buf := make([]byte, 1+c.ByteLen())
	buf[0] = 0x02
	if p.Y.Bit(0) == 1 {
		buf[0] = 0x03
	}
	p.X.FillBytes(buf[1:])
	return hex.EncodeToString(buf)
}

// ParsePoint decodes a hex SEC1 point, compressed or uncompressed, and checks it lies on the curve.
func (c *Curve) ParsePoint(s string) (Point, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, fmt.Errorf("authx: could not parse point: %w", err)
	}
	size := c.ByteLen()
	if len(raw) < 1 {
		return Point{}, errors.New("authx: could not parse point: too short")
	}

	var p Point
	switch {
	case raw[0] == 0x04 && len(raw) == 1+2*size:
		p = Point{
			X: new(big.Int).SetBytes(raw[1 : 1+size]),
			Y: new(big.Int).SetBytes(raw[1+size:]),
		}
	case (raw[0] == 0x02 || raw[0] == 0x03) && len(raw) == 1+size:
		x := new(big.Int).SetBytes(raw[1:])
		if x.Cmp(c.P) >= 0 {
			return Point{}, errors.New("authx: could not parse point: x out of range")
		}
		// y² = x³ + a·x + b
		y := new(big.Int).ModSqrt(c.rhs(x), c.P)
		if y == nil {
			return Point{}, errors.New("authx: could not parse point: x not on curve")
		}
		if y.Bit(0) != uint(raw[0]&1) {
			y.Sub(c.P, y)
		}
		p = Point{X: x, Y: y}
	default:
		return Point{}, fmt.Errorf("authx: could not parse point: unexpected prefix 0x%02x or length %d", raw[0], len(raw))
	}

	if !c.IsOnCurve(p) {
		return Point{}, errors.New("authx: point is not on the curve")
	}
	return p, nil
}
