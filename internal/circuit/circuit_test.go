package circuit

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/address"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/keys"
	"saplingcore/internal/merkle"
	"saplingcore/internal/note"
	"saplingcore/internal/redjubjub"
)

type fixture struct {
	xsk  *keys.ExtendedSpendingKey
	addr *address.PaymentAddress
	note *note.Note
}

func newFixture(t *testing.T, value uint64) *fixture {
	t.Helper()
	seed := make([]byte, 32)
	seed[0] = 7
	xsk, err := keys.DeriveSpendingKey(seed, "m/32'/133'/0'")
	require.NoError(t, err)
	_, addr, err := address.DefaultAddress(xsk.FullViewingKey())
	require.NoError(t, err)
	return &fixture{
		xsk:  xsk,
		addr: addr,
		note: &note.Note{Address: addr, Value: value, Rcm: big.NewInt(123456789)},
	}
}

func (f *fixture) outputAssignment() *OutputCircuit {
	return f.outputAssignmentWith(big.NewInt(31337), big.NewInt(4242))
}

func (f *fixture) outputAssignmentWith(rcv, esk *big.Int) *OutputCircuit {
	gd := f.addr.Base()
	pub := &OutputPublic{
		Cv:  note.ValueCommitment(f.note.Value, rcv),
		Cmu: f.note.CmuElement(),
		Epk: jubjub.Mul(&gd, esk),
	}
	priv := &OutputPrivate{
		Gd:    gd,
		PkD:   f.addr.PkD,
		Value: f.note.Value,
		Rcm:   f.note.Rcm,
		Rcv:   rcv,
		Esk:   esk,
	}
	return OutputAssignment(pub, priv)
}

func TestOutputCircuitSolved(t *testing.T) {
	f := newFixture(t, 60)
	field := ecc.BLS12_381.ScalarField()
	require.NoError(t, test.IsSolved(&OutputCircuit{}, f.outputAssignment(), field))

	bad := f.outputAssignment()
	bad.Value = big.NewInt(61)
	require.Error(t, test.IsSolved(&OutputCircuit{}, bad, field), "value does not match cv and cmu")

	bad = f.outputAssignment()
	bad.Esk = big.NewInt(1)
	require.Error(t, test.IsSolved(&OutputCircuit{}, bad, field), "epk does not match esk")
}

func (f *fixture) spendAssignment(t *testing.T) *SpendCircuit {
	t.Helper()
	return f.spendAssignmentWith(t, 3, big.NewInt(99), big.NewInt(77))
}

// spendAssignmentWith places the note after fillers other leaves.
func (f *fixture) spendAssignmentWith(t *testing.T, fillers uint64, ar, rcv *big.Int) *SpendCircuit {
	t.Helper()
	tree := merkle.NewTree()
	for i := uint64(0); i < fillers; i++ {
		var filler merkle.Node
		filler.SetUint64(1000 + i)
		_, err := tree.Append(filler)
		require.NoError(t, err)
	}
	pos, err := tree.Append(f.note.CmuElement())
	require.NoError(t, err)
	path, err := tree.Witness(pos)
	require.NoError(t, err)

	pak := f.xsk.ProofAuthorizingKey()
	nk := pak.NullifierKey()
	g := jubjub.Bases()
	pub := &SpendPublic{
		Cv:        note.ValueCommitment(f.note.Value, rcv),
		Anchor:    tree.Root(),
		Nullifier: f.note.NullifierElement(&nk, pos),
		Rk:        redjubjub.RandomizePublic(&pak.Ak, ar, &g.SpendAuth),
	}
	priv := &SpendPrivate{
		Ak:    pak.Ak,
		Nsk:   pak.Nsk,
		Ar:    ar,
		Gd:    f.addr.Base(),
		PkD:   f.addr.PkD,
		Value: f.note.Value,
		Rcm:   f.note.Rcm,
		Rcv:   rcv,
		Path:  path,
	}
	return SpendAssignment(pub, priv)
}

func TestSpendCircuitSolved(t *testing.T) {
	f := newFixture(t, 100)
	field := ecc.BLS12_381.ScalarField()
	require.NoError(t, test.IsSolved(&SpendCircuit{}, f.spendAssignment(t), field))

	bad := f.spendAssignment(t)
	bad.Anchor = big.NewInt(5)
	require.Error(t, test.IsSolved(&SpendCircuit{}, bad, field), "wrong anchor")

	bad = f.spendAssignment(t)
	bad.Nullifier = big.NewInt(5)
	require.Error(t, test.IsSolved(&SpendCircuit{}, bad, field), "wrong nullifier")

	bad = f.spendAssignment(t)
	bad.Nsk = big.NewInt(5)
	require.Error(t, test.IsSolved(&SpendCircuit{}, bad, field), "nsk does not own the note")
}

func TestCircuitsAcceptZeroScalars(t *testing.T) {
	field := ecc.BLS12_381.ScalarField()
	zero := big.NewInt(0)

	f := newFixture(t, 0)
	f.note.Rcm = zero
	out := f.outputAssignmentWith(zero, zero)
	require.NoError(t, test.IsSolved(&OutputCircuit{}, out, field), "value, rcm, rcv and esk all zero")

	spend := f.spendAssignmentWith(t, 0, zero, big.NewInt(5))
	require.Zero(t, spend.Position.(*big.Int).Sign())
	require.NoError(t, test.IsSolved(&SpendCircuit{}, spend, field), "first leaf, zero value, zero rcm, zero ar")

	f = newFixture(t, 100)
	spend = f.spendAssignmentWith(t, 0, big.NewInt(99), big.NewInt(77))
	require.NoError(t, test.IsSolved(&SpendCircuit{}, spend, field), "first leaf")

	bad := f.spendAssignmentWith(t, 0, big.NewInt(99), big.NewInt(77))
	bad.Position = big.NewInt(1)
	require.Error(t, test.IsSolved(&SpendCircuit{}, bad, field), "position does not match the nullifier")
}
