package keys

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/saplingerr"
)

func testSeed() []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []ChildIndex
		ok   bool
	}{
		{"master", "m", []ChildIndex{}, true},
		{"zip32 account", "m/32'/133'/0'", []ChildIndex{Hardened(32), Hardened(133), Hardened(0)}, true},
		{"mixed", "m/1/2h/3H", []ChildIndex{1, Hardened(2), Hardened(3)}, true},
		{"max index", "m/2147483647", []ChildIndex{2147483647}, true},
		{"empty", "", nil, false},
		{"no master", "32'/0'", nil, false},
		{"index overflow", "m/2147483648", nil, false},
		{"double slash", "m//1", nil, false},
		{"trailing slash", "m/1/", nil, false},
		{"signed", "m/-1", nil, false},
		{"letters", "m/abc", nil, false},
		{"lone apostrophe", "m/'", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if !tt.ok {
				assert.True(t, errors.Is(err, saplingerr.ErrInvalidDerivationPath), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			again, err := ParsePath(FormatPath(got))
			require.NoError(t, err)
			assert.Equal(t, got, again, "round trip")
		})
	}
}

func TestMasterKeyRejectsBadSeeds(t *testing.T) {
	_, err := MasterKey(nil)
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))
	_, err = MasterKey(make([]byte, SeedMinSize-1))
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))
	_, err = MasterKey(make([]byte, SeedMaxSize+1))
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))

	_, err = DeriveSpendingKey(testSeed(), "m/x")
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidDerivationPath))
}

func TestDerivationIsDeterministic(t *testing.T) {
	a, err := DeriveSpendingKey(testSeed(), "m/32'/133'/0'")
	require.NoError(t, err)
	b, err := DeriveSpendingKey(testSeed(), "m/32'/133'/0'")
	require.NoError(t, err)
	assert.Equal(t, a.Bytes(), b.Bytes())
	assert.Len(t, a.Bytes(), ExtendedKeySize)
	assert.Equal(t, uint8(3), a.Depth)
	assert.Equal(t, Hardened(0), a.ChildIndex)

	other, err := DeriveSpendingKey(testSeed(), "m/32'/133'/1'")
	require.NoError(t, err)
	assert.NotEqual(t, a.Bytes(), other.Bytes())

	master, err := MasterKey(testSeed())
	require.NoError(t, err)
	viaMethod, err := master.Derive("m/32'/133'/0'")
	require.NoError(t, err)
	assert.Equal(t, a.Bytes(), viaMethod.Bytes())
}

func TestViewingKeysDoNotLeakSpendingMaterial(t *testing.T) {
	xsk, err := DeriveSpendingKey(testSeed(), "m/32'/133'/0'")
	require.NoError(t, err)
	xfvk := xsk.FullViewingKey()

	ask := jubjub.EncodeScalar(xsk.Expsk.Ask)
	nsk := jubjub.EncodeScalar(xsk.Expsk.Nsk)
	ivk := xfvk.IncomingViewingKey().Bytes()
	fvkBytes := xfvk.Bytes()

	for _, secret := range [][]byte{ask[:], nsk[:]} {
		assert.False(t, bytes.Contains(fvkBytes, secret), "xfvk contains a secret scalar")
		assert.False(t, bytes.Equal(ivk[:], secret), "ivk equals a secret scalar")
	}
	ovk := xfvk.OutgoingViewingKey()
	assert.False(t, bytes.Equal(ovk[:], ask[:]))
	assert.Equal(t, xsk.Expsk.Ovk, ovk)
	assert.Equal(t, xsk.ChainCode, xfvk.ChainCode)
}

func TestNonHardenedViewingKeyDerivationCommutes(t *testing.T) {
	xsk, err := DeriveSpendingKey(testSeed(), "m/32'/133'/0'")
	require.NoError(t, err)

	childXsk, err := xsk.Derive("m/7/9")
	require.NoError(t, err)
	childXfvk, err := xsk.FullViewingKey().Derive("m/7/9")
	require.NoError(t, err)

	assert.Equal(t, childXsk.FullViewingKey().Bytes(), childXfvk.Bytes())

	_, err = xsk.FullViewingKey().Child(Hardened(1))
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidDerivationPath))
}

func TestExtendedKeyEncoding(t *testing.T) {
	xsk, err := DeriveSpendingKey(testSeed(), "m/32'/133'/0'/5")
	require.NoError(t, err)

	parsed, err := ParseExtendedSpendingKey(xsk.Bytes())
	require.NoError(t, err)
	assert.Equal(t, xsk.Bytes(), parsed.Bytes())

	xfvk := xsk.FullViewingKey()
	parsedFvk, err := ParseExtendedFullViewingKey(xfvk.Bytes())
	require.NoError(t, err)
	assert.Equal(t, xfvk.Bytes(), parsedFvk.Bytes())

	_, err = ParseExtendedSpendingKey(xsk.Bytes()[:100])
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))

	bad := xsk.Bytes()
	for i := 41; i < 73; i++ {
		bad[i] = 0xff
	}
	_, err = ParseExtendedSpendingKey(bad)
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidScalar))
}

func TestProofAuthorizingKey(t *testing.T) {
	xsk, err := DeriveSpendingKey(testSeed(), "m/32'/133'/0'")
	require.NoError(t, err)
	pak := xsk.ProofAuthorizingKey()
	xfvk := xsk.FullViewingKey()

	assert.Len(t, pak.Bytes(), ProofAuthorizingKeySize)
	assert.True(t, pak.Ak.Equal(&xfvk.Fvk.Ak))
	nk := pak.NullifierKey()
	assert.True(t, nk.Equal(&xfvk.Fvk.Nk))
	assert.Equal(t, xfvk.IncomingViewingKey().Bytes(), pak.IncomingViewingKey().Bytes())

	parsed, err := ParseProofAuthorizingKey(pak.Bytes())
	require.NoError(t, err)
	assert.Equal(t, pak.Bytes(), parsed.Bytes())
	assert.Same(t, parsed, parsed.ProofAuthorizingKey())
}

func TestIncomingViewingKeyCodec(t *testing.T) {
	xsk, err := DeriveSpendingKey(testSeed(), "m/32'/133'/0'")
	require.NoError(t, err)
	ivk := xsk.FullViewingKey().IncomingViewingKey()
	enc := ivk.Bytes()

	parsed, err := ParseIncomingViewingKey(enc[:])
	require.NoError(t, err)
	assert.Equal(t, 0, ivk.Scalar().Cmp(parsed.Scalar()))

	_, err = ParseIncomingViewingKey(make([]byte, 32))
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidScalar))
}
