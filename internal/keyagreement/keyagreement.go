// keyagreement.go - Diffie-Hellman over Jubjub and ephemeral key derivation.

// Package keyagreement derives shared secrets between a sender's ephemeral
// key and a recipient's transmission key, and uses them to encrypt notes.
package keyagreement

import (
	"math/big"

	"github.com/minio/blake2b-simd"

	"saplingcore/internal/address"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/saplingerr"
)

const kdfPersonalization = "Zcash_SaplingKDF"

// Agree returns [8 * sk] pk, which always lies in the prime-order subgroup.
func Agree(pk *jubjub.Point, sk *big.Int) jubjub.Point {
	p := jubjub.Mul(pk, sk)
	return jubjub.MulByCofactor(&p)
}

// AgreeBytes is Agree over encoded inputs.
func AgreeBytes(point, scalar []byte) ([jubjub.PointSize]byte, error) {
	p, err := jubjub.DecodePoint(point)
	if err != nil {
		return [jubjub.PointSize]byte{}, err
	}
	s, err := jubjub.DecodeScalar(scalar)
	if err != nil {
		return [jubjub.PointSize]byte{}, err
	}
	shared := Agree(&p, s)
	return jubjub.EncodePoint(&shared), nil
}

// DeriveEphemeralKey returns epk = [esk] g_d.
func DeriveEphemeralKey(d address.Diversifier, esk *big.Int) (jubjub.Point, error) {
	gd, ok := d.Base()
	if !ok {
		return jubjub.Point{}, saplingerr.New(saplingerr.InvalidPoint, "keyagreement.DeriveEphemeralKey", "diversifier has no base point")
	}
	return jubjub.Mul(&gd, esk), nil
}

// DeriveEphemeralKeyBytes is DeriveEphemeralKey over encoded inputs.
func DeriveEphemeralKeyBytes(diversifier, esk []byte) ([jubjub.PointSize]byte, error) {
	d, err := address.ParseDiversifier(diversifier)
	if err != nil {
		return [jubjub.PointSize]byte{}, err
	}
	s, err := jubjub.DecodeScalar(esk)
	if err != nil {
		return [jubjub.PointSize]byte{}, err
	}
	epk, err := DeriveEphemeralKey(d, s)
	if err != nil {
		return [jubjub.PointSize]byte{}, err
	}
	return jubjub.EncodePoint(&epk), nil
}

// KDF derives the symmetric note encryption key from the shared secret and epk.
func KDF(shared, epk *jubjub.Point) [32]byte {
	s := jubjub.EncodePoint(shared)
	e := jubjub.EncodePoint(epk)
	h, _ := blake2b.New(&blake2b.Config{Size: 32, Person: []byte(kdfPersonalization)})
	h.Write(s[:])
	h.Write(e[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}
