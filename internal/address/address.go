// address.go - Payment addresses: derivation, decomposition and Bech32 encoding.

// Package address derives payment addresses (diversifier, transmission key)
// from viewing keys.
package address

import (
	"github.com/btcsuite/btcutil/bech32"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/keys"
	"saplingcore/internal/saplingerr"
)

const (
	// Size is the length of an encoded payment address.
	Size = DiversifierSize + jubjub.PointSize

	// HRP is the Bech32 human-readable part of a payment address.
	HRP = "zs"
)

// PaymentAddress is the pair (d, pk_d).
type PaymentAddress struct {
	D   Diversifier
	PkD jubjub.Point
}

// FromIncomingViewingKey returns the address (d, [ivk]g_d). An invalid
// diversifier fails with NoValidDiversifier.
func FromIncomingViewingKey(ivk keys.IncomingViewingKey, d Diversifier) (*PaymentAddress, error) {
	gd, ok := d.Base()
	if !ok {
		return nil, saplingerr.New(saplingerr.NoValidDiversifier, "address.FromIncomingViewingKey", "diversifier %x has no base", d[:])
	}
	return &PaymentAddress{D: d, PkD: jubjub.Mul(&gd, ivk.Scalar())}, nil
}

// AddressAtIndex returns the address whose diversifier is FF1(dk, idx). It
// does not search: an invalid diversifier fails with NoValidDiversifier.
func AddressAtIndex(xfvk *keys.ExtendedFullViewingKey, idx DiversifierIndex) (*PaymentAddress, error) {
	d, err := DiversifierAt(xfvk.Dk, idx)
	if err != nil {
		return nil, err
	}
	return FromIncomingViewingKey(xfvk.IncomingViewingKey(), d)
}

// NextAddress scans upward from idx (inclusive) and returns the first index
// with a valid diversifier together with its address.
func NextAddress(xfvk *keys.ExtendedFullViewingKey, idx DiversifierIndex) (DiversifierIndex, *PaymentAddress, error) {
	const op = "address.NextAddress"
	dc, err := newDiversifierCipher(xfvk.Dk)
	if err != nil {
		return idx, nil, err
	}
	ivk := xfvk.IncomingViewingKey()
	cur := idx
	for attempt := 0; attempt < MaxDiversifierAttempts; attempt++ {
		d, err := dc.diversifier(cur)
		if err != nil {
			return idx, nil, err
		}
		if gd, ok := d.Base(); ok {
			return cur, &PaymentAddress{D: d, PkD: jubjub.Mul(&gd, ivk.Scalar())}, nil
		}
		if !cur.Increment() {
			return idx, nil, saplingerr.New(saplingerr.NoValidDiversifier, op, "diversifier space exhausted")
		}
	}
	return idx, nil, saplingerr.New(saplingerr.NoValidDiversifier, op, "no valid diversifier within %d attempts", MaxDiversifierAttempts)
}

// DefaultAddress is NextAddress starting at index zero.
func DefaultAddress(xfvk *keys.ExtendedFullViewingKey) (DiversifierIndex, *PaymentAddress, error) {
	return NextAddress(xfvk, DiversifierIndex{})
}

// Diversifier returns d.
func (a *PaymentAddress) Diversifier() Diversifier { return a.D }

// TransmissionKey returns the encoding of pk_d.
func (a *PaymentAddress) TransmissionKey() [jubjub.PointSize]byte {
	return jubjub.EncodePoint(&a.PkD)
}

// Base returns g_d. The diversifier of a parsed or derived address is always valid.
func (a *PaymentAddress) Base() jubjub.Point {
	gd, _ := a.D.Base()
	return gd
}

// Bytes returns d || pk_d.
func (a *PaymentAddress) Bytes() [Size]byte {
	var out [Size]byte
	copy(out[:DiversifierSize], a.D[:])
	pkd := jubjub.EncodePoint(&a.PkD)
	copy(out[DiversifierSize:], pkd[:])
	return out
}

// Equal reports whether two addresses are identical.
func (a *PaymentAddress) Equal(b *PaymentAddress) bool {
	return a.D == b.D && a.PkD.Equal(&b.PkD)
}

// Parse decodes d || pk_d, checking both components.
func Parse(b []byte) (*PaymentAddress, error) {
	const op = "address.Parse"
	if len(b) != Size {
		return nil, saplingerr.New(saplingerr.MalformedAddress, op, "expected %d bytes, got %d", Size, len(b))
	}
	var d Diversifier
	copy(d[:], b[:DiversifierSize])
	if !d.IsValid() {
		return nil, saplingerr.New(saplingerr.MalformedAddress, op, "invalid diversifier")
	}
	pkd, err := jubjub.DecodePoint(b[DiversifierSize:])
	if err != nil {
		return nil, saplingerr.Wrap(saplingerr.MalformedAddress, op, err)
	}
	return &PaymentAddress{D: d, PkD: pkd}, nil
}

// DiversifierOf extracts the diversifier of an encoded address.
func DiversifierOf(b []byte) (Diversifier, error) {
	a, err := Parse(b)
	if err != nil {
		return Diversifier{}, err
	}
	return a.D, nil
}

// TransmissionKeyOf extracts the encoded pk_d of an encoded address.
func TransmissionKeyOf(b []byte) ([jubjub.PointSize]byte, error) {
	a, err := Parse(b)
	if err != nil {
		return [jubjub.PointSize]byte{}, err
	}
	return a.TransmissionKey(), nil
}

// String returns the Bech32 form of the address.
func (a *PaymentAddress) String() string {
	raw := a.Bytes()
	conv, err := bech32.ConvertBits(raw[:], 8, 5, true)
	if err != nil {
		return ""
	}
	s, err := bech32.Encode(HRP, conv)
	if err != nil {
		return ""
	}
	return s
}

// Decode parses the Bech32 form produced by String.
func Decode(s string) (*PaymentAddress, error) {
	const op = "address.Decode"
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return nil, saplingerr.Wrap(saplingerr.MalformedAddress, op, err)
	}
	if hrp != HRP {
		return nil, saplingerr.New(saplingerr.MalformedAddress, op, "unexpected prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, saplingerr.Wrap(saplingerr.MalformedAddress, op, err)
	}
	return Parse(raw)
}
