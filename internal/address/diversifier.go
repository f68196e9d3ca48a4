// diversifier.go - Diversifier indices, FF1 diversifier derivation and diversified bases.

package address

import (
	"strings"

	"github.com/capitalone/fpe/ff1"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/keys"
	"saplingcore/internal/saplingerr"
)

const (
	// DiversifierSize is the length of a diversifier and of a diversifier index.
	DiversifierSize = 11

	// MaxDiversifierAttempts bounds the search performed by NextAddress.
	MaxDiversifierAttempts = 1 << 16
)

// Diversifier selects one of the addresses of a viewing key.
type Diversifier [DiversifierSize]byte

// DiversifierIndex is an 88-bit little-endian counter.
type DiversifierIndex [DiversifierSize]byte

// IndexFromUint64 builds an index from a small counter value.
func IndexFromUint64(v uint64) DiversifierIndex {
	var idx DiversifierIndex
	for i := 0; i < 8; i++ {
		idx[i] = byte(v >> (8 * i))
	}
	return idx
}

// ParseDiversifierIndex copies an 11-byte index.
func ParseDiversifierIndex(b []byte) (DiversifierIndex, error) {
	var idx DiversifierIndex
	if len(b) != DiversifierSize {
		return idx, saplingerr.New(saplingerr.InvalidInput, "address.ParseDiversifierIndex",
			"expected %d bytes, got %d", DiversifierSize, len(b))
	}
	copy(idx[:], b)
	return idx, nil
}

// ParseDiversifier copies an 11-byte diversifier.
func ParseDiversifier(b []byte) (Diversifier, error) {
	var d Diversifier
	if len(b) != DiversifierSize {
		return d, saplingerr.New(saplingerr.InvalidInput, "address.ParseDiversifier",
			"expected %d bytes, got %d", DiversifierSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Increment adds one to the index. ok is false on overflow.
func (idx *DiversifierIndex) Increment() (ok bool) {
	for i := range idx {
		idx[i]++
		if idx[i] != 0 {
			return true
		}
	}
	return false
}

// Base returns g_d. ok is false when d is not a valid diversifier.
func (d Diversifier) Base() (jubjub.Point, bool) {
	return jubjub.GroupHash(jubjub.DiversifierPersonalization, d[:])
}

// IsValid reports whether d maps to a diversified base.
func (d Diversifier) IsValid() bool {
	_, ok := d.Base()
	return ok
}

// diversifierCipher wraps FF1-AES256 keyed by dk over 88-bit strings.
type diversifierCipher struct {
	c ff1.Cipher
}

func newDiversifierCipher(dk keys.DiversifierKey) (*diversifierCipher, error) {
	c, err := ff1.NewCipher(2, 0, dk[:], nil)
	if err != nil {
		return nil, saplingerr.Wrap(saplingerr.InvalidInput, "address.newDiversifierCipher", err)
	}
	return &diversifierCipher{c: c}, nil
}

func (dc *diversifierCipher) diversifier(idx DiversifierIndex) (Diversifier, error) {
	out, err := dc.c.Encrypt(toBits(idx[:]))
	if err != nil {
		return Diversifier{}, saplingerr.Wrap(saplingerr.InvalidInput, "address.diversifier", err)
	}
	var d Diversifier
	fromBits(out, d[:])
	return d, nil
}

// DiversifierAt returns the diversifier at idx for diversifier key dk.
func DiversifierAt(dk keys.DiversifierKey, idx DiversifierIndex) (Diversifier, error) {
	dc, err := newDiversifierCipher(dk)
	if err != nil {
		return Diversifier{}, err
	}
	return dc.diversifier(idx)
}

// toBits renders b as a radix-2 numeral string, least significant bit of
// b[0] first.
func toBits(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 8)
	for _, v := range b {
		for j := 0; j < 8; j++ {
			if v>>j&1 == 1 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return sb.String()
}

func fromBits(s string, out []byte) {
	for i := range out {
		out[i] = 0
	}
	for j := 0; j < len(s) && j < len(out)*8; j++ {
		if s[j] == '1' {
			out[j/8] |= 1 << (j % 8)
		}
	}
}
