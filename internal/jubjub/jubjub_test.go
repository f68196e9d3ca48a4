package jubjub

import (
	"errors"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/saplingerr"
)

func TestGeneratorsAreDistinctSubgroupPoints(t *testing.T) {
	g := Bases()
	all := []Point{
		g.SpendAuth, g.ProofGeneration, g.NoteCommitment, g.NoteRandomness,
		g.NullifierPosition, g.ValueCommitment, g.ValueRandomness,
	}
	for i := range all {
		assert.True(t, all[i].IsOnCurve())
		assert.False(t, all[i].IsZero())
		assert.True(t, InPrimeSubgroup(&all[i]))
		for j := i + 1; j < len(all); j++ {
			assert.False(t, all[i].Equal(&all[j]), "generators %d and %d collide", i, j)
		}
	}
	// second call returns the cached set
	assert.True(t, Bases().SpendAuth.Equal(&g.SpendAuth))
}

func TestPointRoundTripAndRejection(t *testing.T) {
	g := Bases().SpendAuth
	p := Mul(&g, big.NewInt(12345))
	enc := EncodePoint(&p)

	q, err := DecodePoint(enc[:])
	require.NoError(t, err)
	assert.True(t, p.Equal(&q))

	id := Identity()
	idEnc := EncodePoint(&id)
	_, err = DecodePoint(idEnc[:])
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidPoint), "identity must be rejected")

	_, err = DecodePoint(enc[:31])
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))

	// scan for an encoding that is not on the curve
	bad := enc
	found := false
	for i := 0; i < 64 && !found; i++ {
		bad[0] = byte(i)
		if _, err := DecodePoint(bad[:]); errors.Is(err, saplingerr.ErrInvalidPoint) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScalarCodec(t *testing.T) {
	s := big.NewInt(987654321)
	enc := EncodeScalar(s)
	got, err := DecodeScalar(enc[:])
	require.NoError(t, err)
	assert.Equal(t, 0, s.Cmp(got))

	tooBig := EncodeScalar(big.NewInt(0))
	// r_J encoded directly is out of range
	var be [32]byte
	Order().FillBytes(be[:])
	for i := range be {
		tooBig[i] = be[31-i]
	}
	_, err = DecodeScalar(tooBig[:])
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidScalar))
}

func TestElementCodec(t *testing.T) {
	var e fr.Element
	e.SetUint64(42)
	enc := EncodeElement(&e)
	assert.Equal(t, byte(42), enc[0])

	got, err := DecodeElement(enc[:])
	require.NoError(t, err)
	assert.True(t, got.Equal(&e))

	var ones [32]byte
	for i := range ones {
		ones[i] = 0xff
	}
	_, err = DecodeElement(ones[:])
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))
}

func TestMulMatchesRepeatedAdd(t *testing.T) {
	g := Bases().ValueCommitment
	three := Mul(&g, big.NewInt(3))
	sum := Add(&g, &g)
	sum = Add(&sum, &g)
	assert.True(t, three.Equal(&sum))

	back := Sub(&three, &g)
	two := Mul(&g, big.NewInt(2))
	assert.True(t, back.Equal(&two))

	neg := Mul(&g, big.NewInt(-1))
	zero := Add(&neg, &g)
	assert.True(t, zero.IsZero())
}

func TestHashAndTruncate(t *testing.T) {
	var a, b fr.Element
	a.SetUint64(1)
	b.SetUint64(2)
	h1 := HashElements(&a, &b)
	h2 := HashElements(&b, &a)
	assert.False(t, h1.Equal(&h2), "hash must be order sensitive")

	tr := Truncate(&h1)
	assert.LessOrEqual(t, tr.BitLen(), TruncatedBits)
	assert.Equal(t, -1, tr.Cmp(Order()))
}

func TestGroupHashDiversifier(t *testing.T) {
	valid := 0
	for i := 0; i < 32; i++ {
		d := make([]byte, 11)
		d[0] = byte(i)
		if p, ok := GroupHash(DiversifierPersonalization, d); ok {
			valid++
			assert.True(t, InPrimeSubgroup(&p))
		}
	}
	// roughly half of all digests decode to a point
	assert.Greater(t, valid, 0)
	assert.Less(t, valid, 32)
}

func TestReduceWide(t *testing.T) {
	// r_J itself, little-endian, reduces to zero
	var be [64]byte
	Order().FillBytes(be[:])
	le := make([]byte, 64)
	for i := range be {
		le[i] = be[63-i]
	}
	assert.Equal(t, 0, ReduceWide(le).Sign())

	one := make([]byte, 64)
	one[0] = 1
	assert.Equal(t, 0, ReduceWide(one).Cmp(big.NewInt(1)))
}
