package circuit

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"saplingcore/internal/jubjub"
)

// OutputCircuit proves that Cmu commits to a note for (Gd, PkD) whose value
// is committed in Cv, and that Epk was derived from Gd.
type OutputCircuit struct {
	// Public inputs
	Cv  twistededwards.Point `gnark:",public"`
	Cmu frontend.Variable    `gnark:",public"`
	Epk twistededwards.Point `gnark:",public"`

	// Private inputs
	Gd    twistededwards.Point
	PkD   twistededwards.Point
	Value frontend.Variable
	Rcm   frontend.Variable
	Rcv   frontend.Variable
	Esk   frontend.Variable
}

func (c *OutputCircuit) Define(api frontend.API) error {
	curve, err := newCurve(api)
	if err != nil {
		return err
	}
	curve.AssertIsOnCurve(c.Gd)
	curve.AssertIsOnCurve(c.PkD)
	api.ToBinary(c.Value, ValueBits)

	// Step 1: cv = [v] G_value + [rcv] G_rcv
	assertPointsEqual(api, c.Cv, valueCommitment(api, curve, c.Value, c.Rcv))

	// Step 2: cmu = (h G_note + rcm G_rcm).x
	cm, err := noteCommitment(api, curve, c.Gd, c.PkD, c.Value, c.Rcm)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.Cmu, cm.X)

	// Step 3: epk = [esk] g_d
	assertPointsEqual(api, c.Epk, variableBase(api, curve, c.Gd, c.Esk, scalarBits))
	return nil
}

// OutputPublic carries the public inputs of an output statement.
type OutputPublic struct {
	Cv  jubjub.Point
	Cmu fr.Element
	Epk jubjub.Point
}

// Assign sets the public inputs of c.
func (p *OutputPublic) Assign(c *OutputCircuit) {
	c.Cv = PointOf(&p.Cv)
	c.Cmu = p.Cmu.BigInt(new(big.Int))
	c.Epk = PointOf(&p.Epk)
}

// OutputPrivate carries the witness of an output statement.
type OutputPrivate struct {
	Gd    jubjub.Point
	PkD   jubjub.Point
	Value uint64
	Rcm   *big.Int
	Rcv   *big.Int
	Esk   *big.Int
}

// OutputAssignment returns a full assignment for proving.
func OutputAssignment(pub *OutputPublic, priv *OutputPrivate) *OutputCircuit {
	c := &OutputCircuit{
		Gd:    PointOf(&priv.Gd),
		PkD:   PointOf(&priv.PkD),
		Value: new(big.Int).SetUint64(priv.Value),
		Rcm:   priv.Rcm,
		Rcv:   priv.Rcv,
		Esk:   priv.Esk,
	}
	pub.Assign(c)
	return c
}
