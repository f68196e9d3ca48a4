package note

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/address"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/keys"
	"saplingcore/internal/saplingerr"
)

func fixture(t *testing.T) (*keys.ExtendedFullViewingKey, *address.PaymentAddress) {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(7 * i)
	}
	xsk, err := keys.DeriveSpendingKey(seed, "m/32'/133'/0'")
	require.NoError(t, err)
	xfvk := xsk.FullViewingKey()
	_, addr, err := address.DefaultAddress(xfvk)
	require.NoError(t, err)
	return xfvk, addr
}

func TestCmuIsDeterministic(t *testing.T) {
	_, addr := fixture(t)
	raw := addr.Bytes()
	rcm := jubjub.EncodeScalar(big.NewInt(424242))

	n1, err := New(raw[:], 100, rcm[:])
	require.NoError(t, err)
	n2, err := New(raw[:], 100, rcm[:])
	require.NoError(t, err)
	assert.Equal(t, n1.Cmu(), n2.Cmu())
}

func TestCmuChangesWithEveryInput(t *testing.T) {
	xfvk, addr := fixture(t)
	raw := addr.Bytes()
	rcm := jubjub.EncodeScalar(big.NewInt(424242))
	base, err := New(raw[:], 100, rcm[:])
	require.NoError(t, err)
	want := base.Cmu()

	t.Run("value", func(t *testing.T) {
		n, err := New(raw[:], 101, rcm[:])
		require.NoError(t, err)
		assert.NotEqual(t, want, n.Cmu())
	})
	t.Run("rcm", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			other := rcm
			other[i] ^= 0x01
			n, err := New(raw[:], 100, other[:])
			require.NoError(t, err)
			assert.NotEqual(t, want, n.Cmu(), "rcm byte %d", i)
		}
	})
	t.Run("address", func(t *testing.T) {
		idx, _, err := address.DefaultAddress(xfvk)
		require.NoError(t, err)
		require.True(t, idx.Increment())
		_, other, err := address.NextAddress(xfvk, idx)
		require.NoError(t, err)
		otherRaw := other.Bytes()
		n, err := New(otherRaw[:], 100, rcm[:])
		require.NoError(t, err)
		assert.NotEqual(t, want, n.Cmu())
	})
}

func TestRcmOutOfRange(t *testing.T) {
	_, addr := fixture(t)
	raw := addr.Bytes()
	var rcm [32]byte
	for i := range rcm {
		rcm[i] = 0xff
	}
	_, err := New(raw[:], 1, rcm[:])
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidScalar))

	_, err = New(raw[:10], 1, make([]byte, 32))
	assert.True(t, errors.Is(err, saplingerr.ErrMalformedAddress))
}

func TestNullifierDependsOnPosition(t *testing.T) {
	xfvk, addr := fixture(t)
	n := &Note{Address: addr, Value: 100, Rcm: big.NewInt(99)}

	seen := map[[NullifierSize]byte]uint64{}
	for _, pos := range []uint64{0, 1, 2, 1 << 32, ^uint64(0)} {
		nf := NullifierWithViewingKey(xfvk, n, pos)
		prev, dup := seen[nf]
		assert.False(t, dup, "positions %d and %d share a nullifier", prev, pos)
		seen[nf] = pos
		assert.Equal(t, nf, NullifierWithViewingKey(xfvk, n, pos), "nullifier must be stable")
	}
}

func TestNullifierDependsOnKey(t *testing.T) {
	xfvk, addr := fixture(t)
	n := &Note{Address: addr, Value: 5, Rcm: big.NewInt(3)}
	other, err := xfvk.Child(1)
	require.NoError(t, err)
	assert.NotEqual(t, NullifierWithViewingKey(xfvk, n, 0), NullifierWithViewingKey(other, n, 0))
}

func TestValueCommitmentIsHomomorphic(t *testing.T) {
	a := ValueCommitment(100, big.NewInt(11))
	b := ValueCommitment(60, big.NewInt(5))
	diff := jubjub.Sub(&a, &b)
	want := ValueCommitment(40, big.NewInt(6))
	assert.True(t, diff.Equal(&want))
}

func TestParseCmu(t *testing.T) {
	_, addr := fixture(t)
	n := &Note{Address: addr, Value: 1, Rcm: big.NewInt(1)}
	cmu := n.Cmu()
	e, err := ParseCmu(cmu[:])
	require.NoError(t, err)
	want := n.CmuElement()
	assert.True(t, e.Equal(&want))
}
