package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/prover"
	"saplingcore/internal/verifier"
)

func elem(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

func TestAppendAndWitness(t *testing.T) {
	l := New()
	empty := l.Root()
	assert.True(t, l.IsKnownAnchor(empty))

	for i := uint64(0); i < 4; i++ {
		pos, err := l.AppendCommitment(elem(10 + i))
		require.NoError(t, err)
		assert.Equal(t, i, pos)
	}
	positions, err := l.AppendOutputs(&prover.OutputDescription{Cmu: elem(20)}, &prover.OutputDescription{Cmu: elem(21)})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, positions)
	assert.Equal(t, uint64(6), l.Size())

	root := l.Root()
	w, err := l.Witness(5)
	require.NoError(t, err)
	leaf := elem(21)
	assert.True(t, w.Verify(&leaf, &root))

	assert.True(t, l.HasCommitment(elem(12)))
	assert.False(t, l.HasCommitment(elem(99)))
	assert.True(t, l.IsKnownAnchor(empty), "old anchors stay valid")
	assert.False(t, l.IsKnownAnchor(elem(3)))
}

func TestSaveLoad(t *testing.T) {
	l := New()
	_, err := l.AppendCommitment(elem(1))
	require.NoError(t, err)
	_, err = l.AppendCommitment(elem(2))
	require.NoError(t, err)
	l.nullifiers[[32]byte{0xAA}] = struct{}{}

	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, l.SaveToFile(path))

	back, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, l.Root(), back.Root())
	assert.Equal(t, l.Size(), back.Size())
	assert.True(t, back.HasNullifier([32]byte{0xAA}))
	assert.False(t, back.HasNullifier([32]byte{0xAB}))
	assert.Len(t, back.anchors, len(l.anchors))

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func spendWith(anchor fr.Element, nf uint64) *prover.SpendDescription {
	return &prover.SpendDescription{Anchor: anchor, Nullifier: elem(nf)}
}

func TestApplyBundleRejectsBeforeVerifying(t *testing.T) {
	l := New()
	_, err := l.AppendCommitment(elem(7))
	require.NoError(t, err)
	root := l.Root()
	spent := spendWith(root, 1)
	l.nullifiers[spent.NullifierBytes()] = struct{}{}

	ctx := context.Background()
	_, err = l.ApplyBundle(ctx, &verifier.Bundle{Spends: []*prover.SpendDescription{spent}}, [32]byte{})
	assert.True(t, errors.Is(err, ErrDoubleSpend))

	twice := &verifier.Bundle{Spends: []*prover.SpendDescription{spendWith(root, 2), spendWith(root, 2)}}
	_, err = l.ApplyBundle(ctx, twice, [32]byte{})
	assert.True(t, errors.Is(err, ErrDoubleSpend))

	stale := &verifier.Bundle{Spends: []*prover.SpendDescription{spendWith(elem(12345), 3)}}
	_, err = l.ApplyBundle(ctx, stale, [32]byte{})
	assert.True(t, errors.Is(err, ErrUnknownAnchor))

	assert.Equal(t, uint64(1), l.Size(), "rejected bundles change nothing")
}

func TestAppendIsAllOrNothing(t *testing.T) {
	l := New()
	l.capacity = 3
	_, err := l.AppendCommitment(elem(1))
	require.NoError(t, err)
	root := l.Root()

	outs := []*prover.OutputDescription{{Cmu: elem(2)}, {Cmu: elem(3)}, {Cmu: elem(4)}}
	positions, err := l.AppendOutputs(outs...)
	assert.True(t, errors.Is(err, ErrTreeFull))
	assert.Nil(t, positions)
	assert.Equal(t, uint64(1), l.Size())
	assert.False(t, l.HasCommitment(elem(2)))

	spend := spendWith(root, 9)
	bundle := &verifier.Bundle{Spends: []*prover.SpendDescription{spend}, Outputs: outs}
	_, err = l.ApplyBundle(context.Background(), bundle, [32]byte{})
	assert.True(t, errors.Is(err, ErrTreeFull))
	assert.False(t, l.HasNullifier(spend.NullifierBytes()), "a bundle that cannot be appended reveals nothing")
	assert.Equal(t, root, l.Root())

	positions, err = l.AppendOutputs(outs[:2]...)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, positions)
	_, err = l.AppendCommitment(elem(5))
	assert.True(t, errors.Is(err, ErrTreeFull))
}

func TestSaveReportsWriteErrors(t *testing.T) {
	l := New()
	_, err := l.AppendCommitment(elem(1))
	require.NoError(t, err)

	assert.Error(t, l.SaveToFile(filepath.Join(t.TempDir(), "missing", "ledger.json")))
	if _, err := os.Stat("/dev/full"); err == nil {
		assert.Error(t, l.SaveToFile("/dev/full"))
	}
}
