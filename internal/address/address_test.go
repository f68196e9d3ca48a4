package address

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/keys"
	"saplingcore/internal/saplingerr"
)

func testViewingKey(t *testing.T) *keys.ExtendedFullViewingKey {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(0xa0 + i)
	}
	xsk, err := keys.DeriveSpendingKey(seed, "m/32'/133'/0'")
	require.NoError(t, err)
	return xsk.FullViewingKey()
}

// indexLess compares indices as little-endian integers.
func indexLess(a, b DiversifierIndex) bool {
	for i := DiversifierSize - 1; i >= 0; i-- {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestNextAddressReturnsLowestValidIndex(t *testing.T) {
	xfvk := testViewingKey(t)

	idx, addr, err := NextAddress(xfvk, DiversifierIndex{})
	require.NoError(t, err)

	// every index below the returned one must be invalid
	cur := DiversifierIndex{}
	for indexLess(cur, idx) {
		_, err := AddressAtIndex(xfvk, cur)
		assert.True(t, errors.Is(err, saplingerr.ErrNoValidDiversifier))
		cur.Increment()
	}
	atIdx, err := AddressAtIndex(xfvk, idx)
	require.NoError(t, err)
	assert.True(t, atIdx.Equal(addr))

	defIdx, def, err := DefaultAddress(xfvk)
	require.NoError(t, err)
	assert.Equal(t, idx, defIdx)
	assert.True(t, def.Equal(addr))
}

func TestNextAddressNeverRepeats(t *testing.T) {
	xfvk := testViewingKey(t)
	seen := map[DiversifierIndex]bool{}
	seenAddr := map[[Size]byte]bool{}

	start := DiversifierIndex{}
	for i := 0; i < 8; i++ {
		idx, addr, err := NextAddress(xfvk, start)
		require.NoError(t, err)
		assert.False(t, seen[idx], "index returned twice")
		assert.False(t, seenAddr[addr.Bytes()], "address returned twice")
		assert.False(t, indexLess(idx, start), "scan went backwards")
		seen[idx] = true
		seenAddr[addr.Bytes()] = true

		start = idx
		require.True(t, start.Increment())
	}
}

func TestNextAddressExhaustion(t *testing.T) {
	xfvk := testViewingKey(t)
	var last DiversifierIndex
	for i := range last {
		last[i] = 0xff
	}
	// the final index either works or exhausts the space; it never wraps
	idx, _, err := NextAddress(xfvk, last)
	if err != nil {
		assert.True(t, errors.Is(err, saplingerr.ErrNoValidDiversifier))
	} else {
		assert.Equal(t, last, idx)
	}
}

func TestIncomingViewingKeyAddressMatchesViewingKeyAddress(t *testing.T) {
	xfvk := testViewingKey(t)
	_, addr, err := DefaultAddress(xfvk)
	require.NoError(t, err)

	fromIvk, err := FromIncomingViewingKey(xfvk.IncomingViewingKey(), addr.Diversifier())
	require.NoError(t, err)
	assert.True(t, fromIvk.Equal(addr))

	// an explicit index and an explicit diversifier are different inputs
	var idx DiversifierIndex
	copy(idx[:], addr.D[:])
	d, err := DiversifierAt(xfvk.Dk, idx)
	require.NoError(t, err)
	assert.NotEqual(t, addr.D, d)
}

func TestInvalidDiversifierRejected(t *testing.T) {
	xfvk := testViewingKey(t)
	var d Diversifier
	for i := 0; i < 256; i++ {
		d[0] = byte(i)
		if !d.IsValid() {
			break
		}
	}
	require.False(t, d.IsValid())
	_, err := FromIncomingViewingKey(xfvk.IncomingViewingKey(), d)
	assert.True(t, errors.Is(err, saplingerr.ErrNoValidDiversifier))
}

func TestDecomposition(t *testing.T) {
	xfvk := testViewingKey(t)
	_, addr, err := DefaultAddress(xfvk)
	require.NoError(t, err)
	raw := addr.Bytes()

	d, err := DiversifierOf(raw[:])
	require.NoError(t, err)
	assert.Equal(t, addr.D, d)

	pkd, err := TransmissionKeyOf(raw[:])
	require.NoError(t, err)
	assert.Equal(t, jubjub.EncodePoint(&addr.PkD), pkd)

	_, err = DiversifierOf(raw[:42])
	assert.True(t, errors.Is(err, saplingerr.ErrMalformedAddress))

	id := jubjub.Identity()
	idEnc := jubjub.EncodePoint(&id)
	bad := raw
	copy(bad[DiversifierSize:], idEnc[:])
	_, err = TransmissionKeyOf(bad[:])
	assert.True(t, errors.Is(err, saplingerr.ErrMalformedAddress))
}

func TestBech32RoundTrip(t *testing.T) {
	xfvk := testViewingKey(t)
	_, addr, err := DefaultAddress(xfvk)
	require.NoError(t, err)

	s := addr.String()
	assert.Equal(t, "zs1", s[:3])
	back, err := Decode(s)
	require.NoError(t, err)
	assert.True(t, back.Equal(addr))

	_, err = Decode("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	assert.True(t, errors.Is(err, saplingerr.ErrMalformedAddress))
	swap := "q"
	if s[len(s)-1] == 'q' {
		swap = "p"
	}
	_, err = Decode(s[:len(s)-1] + swap)
	assert.True(t, errors.Is(err, saplingerr.ErrMalformedAddress), "checksum must fail")
}

func TestParseReportsOneKind(t *testing.T) {
	_, addr, err := DefaultAddress(testViewingKey(t))
	require.NoError(t, err)
	raw := addr.Bytes()
	for i := DiversifierSize; i < Size; i++ {
		raw[i] = 0xff
	}
	_, err = Parse(raw[:])
	require.Error(t, err)
	assert.True(t, errors.Is(err, saplingerr.ErrMalformedAddress))
	assert.False(t, errors.Is(err, saplingerr.ErrInvalidPoint))
}

func TestIndexHelpers(t *testing.T) {
	idx := IndexFromUint64(0x0102)
	assert.Equal(t, byte(0x02), idx[0])
	assert.Equal(t, byte(0x01), idx[1])
	assert.True(t, indexLess(IndexFromUint64(0xff), IndexFromUint64(0x100)))
	assert.False(t, indexLess(IndexFromUint64(2), IndexFromUint64(2)))

	_, err := ParseDiversifierIndex(make([]byte, 10))
	assert.True(t, errors.Is(err, saplingerr.ErrInvalidInput))
}
