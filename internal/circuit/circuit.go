// circuit.go - Gadgets shared by the spend and output circuits.
//
// Every gadget recomputes in-circuit exactly what the native packages compute
// (jubjub, note, merkle), so a witness built from native values satisfies the
// constraints bit for bit.

// Package circuit defines the Groth16 spend and output statements over
// BLS12-381 with Jubjub arithmetic and MiMC hashing.
package circuit

import (
	"math/big"

	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash/mimc"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/merkle"
)

// ValueBits bounds note values to uint64.
const ValueBits = 64

// positionBits bounds tree positions to the tree capacity.
const positionBits = merkle.Depth

// PointOf converts a native point into a circuit point. The result can be
// used either as an assignment or as a constant inside Define.
func PointOf(p *jubjub.Point) twistededwards.Point {
	return twistededwards.Point{
		X: p.X.BigInt(new(big.Int)),
		Y: p.Y.BigInt(new(big.Int)),
	}
}

func newCurve(api frontend.API) (twistededwards.Curve, error) {
	return twistededwards.NewEdCurve(api, tedwards.BLS12_381)
}

func assertPointsEqual(api frontend.API, a, b twistededwards.Point) {
	api.AssertIsEqual(a.X, b.X)
	api.AssertIsEqual(a.Y, b.Y)
}

// hash returns MiMC(elems...) with a fresh hasher.
func hash(api frontend.API, elems ...frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(elems...)
	return h.Sum(), nil
}

// truncate keeps the low jubjub.TruncatedBits bits of v.
func truncate(api frontend.API, v frontend.Variable) frontend.Variable {
	bits := api.ToBinary(v)
	return api.FromBinary(bits[:jubjub.TruncatedBits]...)
}

// scalarBits covers every scalar below the Jubjub group order.
const scalarBits = 252

func identity() twistededwards.Point {
	return twistededwards.Point{X: 0, Y: 1}
}

func selectPoint(api frontend.API, b frontend.Variable, p, q twistededwards.Point) twistededwards.Point {
	return twistededwards.Point{
		X: api.Select(b, p.X, q.X),
		Y: api.Select(b, p.Y, q.Y),
	}
}

// fixedBase returns [s] base for a constant generator, reading s as nbits
// little-endian bits. The doublings of base are constants, so each bit costs
// one addition. s = 0 gives the identity.
func fixedBase(api frontend.API, curve twistededwards.Curve, base *jubjub.Point, s frontend.Variable, nbits int) twistededwards.Point {
	bits := api.ToBinary(s, nbits)
	acc := identity()
	pow := *base
	for i, b := range bits {
		acc = selectPoint(api, b, curve.Add(acc, PointOf(&pow)), acc)
		if i+1 < len(bits) {
			pow = jubjub.Add(&pow, &pow)
		}
	}
	return acc
}

// variableBase returns [s] p by double-and-add over nbits bits of s. Unlike
// curve.ScalarMul it is defined at s = 0.
func variableBase(api frontend.API, curve twistededwards.Curve, p twistededwards.Point, s frontend.Variable, nbits int) twistededwards.Point {
	bits := api.ToBinary(s, nbits)
	acc := identity()
	for i := len(bits) - 1; i >= 0; i-- {
		acc = curve.Double(acc)
		acc = selectPoint(api, bits[i], curve.Add(acc, p), acc)
	}
	return acc
}

// valueCommitment mirrors note.ValueCommitment.
func valueCommitment(api frontend.API, curve twistededwards.Curve, value, rcv frontend.Variable) twistededwards.Point {
	g := jubjub.Bases()
	v := fixedBase(api, curve, &g.ValueCommitment, value, ValueBits)
	r := fixedBase(api, curve, &g.ValueRandomness, rcv, scalarBits)
	return curve.Add(v, r)
}

// noteCommitment mirrors note.Note.Commitment.
func noteCommitment(api frontend.API, curve twistededwards.Curve, gd, pkd twistededwards.Point, value, rcm frontend.Variable) (twistededwards.Point, error) {
	h, err := hash(api, gd.X, gd.Y, pkd.X, pkd.Y, value)
	if err != nil {
		return twistededwards.Point{}, err
	}
	g := jubjub.Bases()
	msg := fixedBase(api, curve, &g.NoteCommitment, truncate(api, h), jubjub.TruncatedBits)
	blind := fixedBase(api, curve, &g.NoteRandomness, rcm, scalarBits)
	return curve.Add(msg, blind), nil
}

// merkleRoot folds leaf up the authentication path. Bit i of position set
// means the running node is the right child at depth i.
func merkleRoot(api frontend.API, leaf frontend.Variable, siblings []frontend.Variable, position frontend.Variable) (frontend.Variable, error) {
	bits := api.ToBinary(position, positionBits)
	cur := leaf
	for i, sib := range siblings {
		left := api.Select(bits[i], sib, cur)
		right := api.Select(bits[i], cur, sib)
		next, err := hash(api, i, left, right)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
