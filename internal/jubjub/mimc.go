// mimc.go - Native MiMC hashing over the BLS12-381 scalar field.
//
// Mirrors std/hash/mimc in gnark so that values computed here match the ones
// recomputed inside the circuits.

package jubjub

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/mimc"
)

// TruncatedBits is the width of hash outputs used as scalars. 2^251 < r_J so
// a truncated output is always a valid scalar.
const TruncatedBits = 251

// HashElements returns MiMC(elems...).
func HashElements(elems ...*fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for _, e := range elems {
		b := e.Bytes()
		// canonical by construction, Write cannot fail
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// HashPoints returns MiMC over the coordinates of the given points followed
// by any extra elements.
func HashPoints(points []*Point, extra ...*fr.Element) fr.Element {
	elems := make([]*fr.Element, 0, 2*len(points)+len(extra))
	for _, p := range points {
		elems = append(elems, &p.X, &p.Y)
	}
	elems = append(elems, extra...)
	return HashElements(elems...)
}

// Truncate keeps the low TruncatedBits bits of e.
func Truncate(e *fr.Element) *big.Int {
	v := e.BigInt(new(big.Int))
	mask := new(big.Int).Lsh(big.NewInt(1), TruncatedBits)
	mask.Sub(mask, big.NewInt(1))
	return v.And(v, mask)
}
