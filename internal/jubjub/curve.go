// curve.go - Point and scalar codecs over Jubjub.

package jubjub

import (
	"bytes"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"

	"saplingcore/internal/saplingerr"
)

const (
	// PointSize is the length of a compressed point.
	PointSize = 32
	// ScalarSize is the length of an encoded scalar.
	ScalarSize = 32
	// ElementSize is the length of an encoded base field element.
	ElementSize = fr.Bytes
)

// Point is an affine Jubjub point.
type Point = twistededwards.PointAffine

var order = func() big.Int {
	return twistededwards.GetEdwardsCurve().Order
}()

// Order returns a copy of the prime subgroup order r_J.
func Order() *big.Int {
	return new(big.Int).Set(&order)
}

// Identity returns the neutral element (0, 1).
func Identity() Point {
	var p Point
	p.X.SetZero()
	p.Y.SetOne()
	return p
}

// Mul returns [s]p. s is reduced modulo r_J first so negative values work.
func Mul(p *Point, s *big.Int) Point {
	k := new(big.Int).Mod(s, &order)
	var r Point
	r.ScalarMultiplication(p, k)
	return r
}

// Add returns a + b.
func Add(a, b *Point) Point {
	var r Point
	r.Add(a, b)
	return r
}

// Sub returns a - b.
func Sub(a, b *Point) Point {
	var n, r Point
	n.Neg(b)
	r.Add(a, &n)
	return r
}

// MulByCofactor returns [8]p.
func MulByCofactor(p *Point) Point {
	var r Point
	r.Double(p)
	r.Double(&r)
	r.Double(&r)
	return r
}

// InPrimeSubgroup reports whether [r_J]p is the identity.
func InPrimeSubgroup(p *Point) bool {
	var r Point
	r.ScalarMultiplication(p, &order)
	return r.IsZero()
}

// EncodePoint returns the compressed encoding of p.
func EncodePoint(p *Point) [PointSize]byte {
	return p.Bytes()
}

// DecodePoint parses a compressed point and checks that it lies in the
// prime-order subgroup and is not the identity.
func DecodePoint(b []byte) (Point, error) {
	const op = "jubjub.DecodePoint"
	var p Point
	if len(b) != PointSize {
		return p, saplingerr.New(saplingerr.InvalidInput, op, "expected %d bytes, got %d", PointSize, len(b))
	}
	if _, err := p.SetBytes(b); err != nil {
		return p, saplingerr.Wrap(saplingerr.InvalidPoint, op, err)
	}
	if !p.IsOnCurve() {
		return p, saplingerr.New(saplingerr.InvalidPoint, op, "not on curve")
	}
	enc := p.Bytes()
	if !bytes.Equal(enc[:], b) {
		return p, saplingerr.New(saplingerr.InvalidPoint, op, "non-canonical encoding")
	}
	if p.IsZero() {
		return p, saplingerr.New(saplingerr.InvalidPoint, op, "identity")
	}
	if !InPrimeSubgroup(&p) {
		return p, saplingerr.New(saplingerr.InvalidPoint, op, "not in prime-order subgroup")
	}
	return p, nil
}

// EncodeScalar returns the 32-byte little-endian encoding of s mod r_J.
func EncodeScalar(s *big.Int) [ScalarSize]byte {
	k := new(big.Int).Mod(s, &order)
	var be, le [ScalarSize]byte
	k.FillBytes(be[:])
	for i := range be {
		le[i] = be[ScalarSize-1-i]
	}
	return le
}

// DecodeScalar parses a little-endian scalar, rejecting values >= r_J.
func DecodeScalar(b []byte) (*big.Int, error) {
	const op = "jubjub.DecodeScalar"
	if len(b) != ScalarSize {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "expected %d bytes, got %d", ScalarSize, len(b))
	}
	s := leToInt(b)
	if s.Cmp(&order) >= 0 {
		return nil, saplingerr.New(saplingerr.InvalidScalar, op, "scalar not below subgroup order")
	}
	return s, nil
}

// ReduceWide interprets b as a little-endian integer and reduces it mod r_J.
func ReduceWide(b []byte) *big.Int {
	s := leToInt(b)
	return s.Mod(s, &order)
}

// EncodeElement returns the little-endian encoding of a base field element.
func EncodeElement(e *fr.Element) [ElementSize]byte {
	be := e.Bytes()
	var le [ElementSize]byte
	for i := range be {
		le[i] = be[ElementSize-1-i]
	}
	return le
}

// DecodeElement parses a canonical little-endian base field element.
func DecodeElement(b []byte) (fr.Element, error) {
	const op = "jubjub.DecodeElement"
	var e fr.Element
	if len(b) != ElementSize {
		return e, saplingerr.New(saplingerr.InvalidInput, op, "expected %d bytes, got %d", ElementSize, len(b))
	}
	be := make([]byte, ElementSize)
	for i := range b {
		be[ElementSize-1-i] = b[i]
	}
	if err := e.SetBytesCanonical(be); err != nil {
		return e, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	return e, nil
}

func leToInt(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}
