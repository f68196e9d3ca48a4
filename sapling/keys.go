// keys.go - Byte-slice entry points for keys and addresses.

// Package sapling is the flat entry surface of saplingcore: every function
// takes and returns encoded byte slices. Returned slices are freshly
// allocated and owned by the caller; failures are always reported through
// the error, never through an empty result.
package sapling

import (
	"saplingcore/internal/address"
	"saplingcore/internal/keys"
)

// Encoded sizes.
const (
	DiversifierIndexSize = address.DiversifierSize
	PaymentAddressSize   = address.Size
	IndexedAddressSize   = DiversifierIndexSize + PaymentAddressSize
)

// XSK derives the extended spending key at path from seed.
func XSK(seed []byte, path string) ([]byte, error) {
	xsk, err := keys.DeriveSpendingKey(seed, path)
	if err != nil {
		return nil, err
	}
	return xsk.Bytes(), nil
}

// XFVK derives the extended full viewing key at path from seed.
func XFVK(seed []byte, path string) ([]byte, error) {
	xsk, err := keys.DeriveSpendingKey(seed, path)
	if err != nil {
		return nil, err
	}
	return xsk.FullViewingKey().Bytes(), nil
}

// XFVKFromXSK returns the viewing key of an encoded spending key.
func XFVKFromXSK(xsk []byte) ([]byte, error) {
	k, err := keys.ParseExtendedSpendingKey(xsk)
	if err != nil {
		return nil, err
	}
	return k.FullViewingKey().Bytes(), nil
}

// IVKFromXFVK returns the 32-byte incoming viewing key.
func IVKFromXFVK(xfvk []byte) ([]byte, error) {
	k, err := keys.ParseExtendedFullViewingKey(xfvk)
	if err != nil {
		return nil, err
	}
	ivk := k.IncomingViewingKey().Bytes()
	return ivk[:], nil
}

// OVKFromXFVK returns the 32-byte outgoing viewing key.
func OVKFromXFVK(xfvk []byte) ([]byte, error) {
	k, err := keys.ParseExtendedFullViewingKey(xfvk)
	if err != nil {
		return nil, err
	}
	ovk := k.OutgoingViewingKey()
	return append([]byte(nil), ovk[:]...), nil
}

// PAKFromXSK returns the 64-byte proof authorizing key ak || nsk.
func PAKFromXSK(xsk []byte) ([]byte, error) {
	k, err := keys.ParseExtendedSpendingKey(xsk)
	if err != nil {
		return nil, err
	}
	return k.ProofAuthorizingKey().Bytes(), nil
}

func indexed(idx address.DiversifierIndex, addr *address.PaymentAddress) []byte {
	enc := addr.Bytes()
	out := make([]byte, 0, IndexedAddressSize)
	out = append(out, idx[:]...)
	return append(out, enc[:]...)
}

// DefaultPaymentAddressFromXFVK returns index || address for the lowest
// valid diversifier index.
func DefaultPaymentAddressFromXFVK(xfvk []byte) ([]byte, error) {
	k, err := keys.ParseExtendedFullViewingKey(xfvk)
	if err != nil {
		return nil, err
	}
	idx, addr, err := address.DefaultAddress(k)
	if err != nil {
		return nil, err
	}
	return indexed(idx, addr), nil
}

// PaymentAddressFromXFVK returns index || address for the lowest valid
// diversifier index at or above index.
func PaymentAddressFromXFVK(xfvk, index []byte) ([]byte, error) {
	k, err := keys.ParseExtendedFullViewingKey(xfvk)
	if err != nil {
		return nil, err
	}
	start, err := address.ParseDiversifierIndex(index)
	if err != nil {
		return nil, err
	}
	idx, addr, err := address.NextAddress(k, start)
	if err != nil {
		return nil, err
	}
	return indexed(idx, addr), nil
}

// PaymentAddressAtIndexFromXFVK returns the address at exactly index, or
// NoValidDiversifier when that index has none.
func PaymentAddressAtIndexFromXFVK(xfvk, index []byte) ([]byte, error) {
	k, err := keys.ParseExtendedFullViewingKey(xfvk)
	if err != nil {
		return nil, err
	}
	idx, err := address.ParseDiversifierIndex(index)
	if err != nil {
		return nil, err
	}
	addr, err := address.AddressAtIndex(k, idx)
	if err != nil {
		return nil, err
	}
	enc := addr.Bytes()
	return enc[:], nil
}

// PaymentAddressFromIVK returns (d, [ivk] g_d) for a raw diversifier.
func PaymentAddressFromIVK(ivk, diversifier []byte) ([]byte, error) {
	k, err := keys.ParseIncomingViewingKey(ivk)
	if err != nil {
		return nil, err
	}
	d, err := address.ParseDiversifier(diversifier)
	if err != nil {
		return nil, err
	}
	addr, err := address.FromIncomingViewingKey(k, d)
	if err != nil {
		return nil, err
	}
	enc := addr.Bytes()
	return enc[:], nil
}

// DiversifierFromPaymentAddress returns the 11-byte diversifier.
func DiversifierFromPaymentAddress(addr []byte) ([]byte, error) {
	d, err := address.DiversifierOf(addr)
	if err != nil {
		return nil, err
	}
	return d[:], nil
}

// PKDFromPaymentAddress returns the 32-byte transmission key.
func PKDFromPaymentAddress(addr []byte) ([]byte, error) {
	pkd, err := address.TransmissionKeyOf(addr)
	if err != nil {
		return nil, err
	}
	return pkd[:], nil
}

// EncodePaymentAddress returns the Bech32 form of an encoded address.
func EncodePaymentAddress(addr []byte) (string, error) {
	a, err := address.Parse(addr)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

// DecodePaymentAddress parses the Bech32 form of an address.
func DecodePaymentAddress(s string) ([]byte, error) {
	a, err := address.Decode(s)
	if err != nil {
		return nil, err
	}
	enc := a.Bytes()
	return enc[:], nil
}
