package circuit

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/merkle"
)

// SpendCircuit proves knowledge of a note in the tree under Anchor, owned by
// the key behind Rk, whose value is committed in Cv and whose nullifier is
// Nullifier.
type SpendCircuit struct {
	// Public inputs
	Cv        twistededwards.Point `gnark:",public"`
	Anchor    frontend.Variable    `gnark:",public"`
	Nullifier frontend.Variable    `gnark:",public"`
	Rk        twistededwards.Point `gnark:",public"`

	// Private inputs
	Ak       twistededwards.Point
	Nsk      frontend.Variable
	Ar       frontend.Variable
	Gd       twistededwards.Point
	PkD      twistededwards.Point
	Value    frontend.Variable
	Rcm      frontend.Variable
	Rcv      frontend.Variable
	Position frontend.Variable
	Path     [merkle.Depth]frontend.Variable
}

func (c *SpendCircuit) Define(api frontend.API) error {
	curve, err := newCurve(api)
	if err != nil {
		return err
	}
	g := jubjub.Bases()
	curve.AssertIsOnCurve(c.Ak)
	curve.AssertIsOnCurve(c.Gd)
	curve.AssertIsOnCurve(c.PkD)
	api.ToBinary(c.Value, ValueBits)

	// Step 1: rk = ak + [ar] G_spend
	rk := curve.Add(c.Ak, fixedBase(api, curve, &g.SpendAuth, c.Ar, scalarBits))
	assertPointsEqual(api, c.Rk, rk)

	// Step 2: nk = [nsk] G_proof, ivk = trunc(H(ak, nk)), pk_d = [ivk] g_d
	nk := fixedBase(api, curve, &g.ProofGeneration, c.Nsk, scalarBits)
	ivk, err := hash(api, c.Ak.X, c.Ak.Y, nk.X, nk.Y)
	if err != nil {
		return err
	}
	assertPointsEqual(api, c.PkD, variableBase(api, curve, c.Gd, truncate(api, ivk), jubjub.TruncatedBits))

	// Step 3: note commitment and tree membership
	cm, err := noteCommitment(api, curve, c.Gd, c.PkD, c.Value, c.Rcm)
	if err != nil {
		return err
	}
	root, err := merkleRoot(api, cm.X, c.Path[:], c.Position)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.Anchor, root)

	// Step 4: nf = H(nk, cm + [pos] G_pos)
	rho := curve.Add(cm, fixedBase(api, curve, &g.NullifierPosition, c.Position, positionBits))
	nf, err := hash(api, nk.X, nk.Y, rho.X, rho.Y)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.Nullifier, nf)

	// Step 5: cv = [v] G_value + [rcv] G_rcv
	assertPointsEqual(api, c.Cv, valueCommitment(api, curve, c.Value, c.Rcv))
	return nil
}

// SpendPublic carries the public inputs of a spend statement.
type SpendPublic struct {
	Cv        jubjub.Point
	Anchor    fr.Element
	Nullifier fr.Element
	Rk        jubjub.Point
}

// Assign sets the public inputs of c.
func (p *SpendPublic) Assign(c *SpendCircuit) {
	c.Cv = PointOf(&p.Cv)
	c.Anchor = p.Anchor.BigInt(new(big.Int))
	c.Nullifier = p.Nullifier.BigInt(new(big.Int))
	c.Rk = PointOf(&p.Rk)
}

// SpendPrivate carries the witness of a spend statement.
type SpendPrivate struct {
	Ak    jubjub.Point
	Nsk   *big.Int
	Ar    *big.Int
	Gd    jubjub.Point
	PkD   jubjub.Point
	Value uint64
	Rcm   *big.Int
	Rcv   *big.Int
	Path  *merkle.Path
}

// SpendAssignment returns a full assignment for proving.
func SpendAssignment(pub *SpendPublic, priv *SpendPrivate) *SpendCircuit {
	c := &SpendCircuit{
		Ak:       PointOf(&priv.Ak),
		Nsk:      priv.Nsk,
		Ar:       priv.Ar,
		Gd:       PointOf(&priv.Gd),
		PkD:      PointOf(&priv.PkD),
		Value:    new(big.Int).SetUint64(priv.Value),
		Rcm:      priv.Rcm,
		Rcv:      priv.Rcv,
		Position: new(big.Int).SetUint64(priv.Path.Position),
	}
	for i := range priv.Path.Siblings {
		c.Path[i] = priv.Path.Siblings[i].BigInt(new(big.Int))
	}
	pub.Assign(c)
	return c
}
