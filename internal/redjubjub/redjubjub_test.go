package redjubjub

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/random"
	"saplingcore/internal/saplingerr"
)

func TestSignVerify(t *testing.T) {
	bases := jubjub.Bases()
	for name, base := range map[string]jubjub.Point{
		"spend auth": bases.SpendAuth,
		"binding":    bases.ValueRandomness,
	} {
		t.Run(name, func(t *testing.T) {
			sk, err := random.Scalar()
			require.NoError(t, err)
			vk := PublicKey(sk, &base)
			msg := []byte("sighash")

			sig, err := Sign(sk, msg, &base)
			require.NoError(t, err)
			assert.True(t, Verify(&vk, msg, sig, &base))

			assert.False(t, Verify(&vk, []byte("other"), sig, &base), "wrong message")

			other := PublicKey(big.NewInt(5), &base)
			assert.False(t, Verify(&other, msg, sig, &base), "wrong key")

			tampered := sig
			tampered[40] ^= 0x01
			assert.False(t, Verify(&vk, msg, tampered, &base), "tampered S")
		})
	}
}

func TestSignaturesAreRandomized(t *testing.T) {
	base := jubjub.Bases().SpendAuth
	sk := big.NewInt(42)
	a, err := Sign(sk, []byte("m"), &base)
	require.NoError(t, err)
	b, err := Sign(sk, []byte("m"), &base)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRandomizedKeys(t *testing.T) {
	base := jubjub.Bases().SpendAuth
	ask, err := random.Scalar()
	require.NoError(t, err)
	ar, err := random.Scalar()
	require.NoError(t, err)

	ak := PublicKey(ask, &base)
	rk := RandomizePublic(&ak, ar, &base)
	rsk := Randomize(ask, ar)
	want := PublicKey(rsk, &base)
	assert.True(t, rk.Equal(&want))

	sig, err := Sign(rsk, []byte("tx"), &base)
	require.NoError(t, err)
	assert.True(t, Verify(&rk, []byte("tx"), sig, &base))
	assert.False(t, Verify(&ak, []byte("tx"), sig, &base))
}

func TestSignRejectsOutOfRangeKey(t *testing.T) {
	base := jubjub.Bases().SpendAuth
	_, err := Sign(jubjub.Order(), []byte("m"), &base)
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidScalar))
}

func TestParseSignature(t *testing.T) {
	_, err := ParseSignature(make([]byte, 63))
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))

	sig, err := ParseSignature(make([]byte, SignatureSize))
	require.NoError(t, err)
	vk := PublicKey(big.NewInt(3), &jubjub.Bases().SpendAuth)
	assert.False(t, Verify(&vk, nil, sig, &jubjub.Bases().SpendAuth))
}
