// redjubjub.go - Schnorr signatures over Jubjub with a selectable base point.
//
// Spend authorization signs under G_spend with the randomized key ask + ar.
// The binding signature signs under G_rcv with bsk = sum(rcv).

// Package redjubjub implements RedJubjub signing and verification.
package redjubjub

import (
	"math/big"

	"github.com/minio/blake2b-simd"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/random"
	"saplingcore/internal/saplingerr"
)

const (
	// SignatureSize is R[32] || S[32].
	SignatureSize = jubjub.PointSize + jubjub.ScalarSize

	hStarPersonalization = "Zcash_RedJubjubH"
	nonceRandomSize      = 80
)

// Signature is an encoded RedJubjub signature.
type Signature [SignatureSize]byte

// ParseSignature copies b into a Signature. Only the length is checked here;
// Verify rejects malformed R or S.
func ParseSignature(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, saplingerr.New(saplingerr.InvalidInput, "redjubjub.ParseSignature", "signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

// HashToScalar is H*: BLAKE2b-512 under "Zcash_RedJubjubH" reduced mod r_J.
func HashToScalar(parts ...[]byte) *big.Int {
	h, _ := blake2b.New(&blake2b.Config{Size: 64, Person: []byte(hStarPersonalization)})
	for _, p := range parts {
		h.Write(p)
	}
	return jubjub.ReduceWide(h.Sum(nil))
}

// PublicKey returns [sk] base.
func PublicKey(sk *big.Int, base *jubjub.Point) jubjub.Point {
	return jubjub.Mul(base, sk)
}

// Randomize returns sk + ar mod r_J.
func Randomize(sk, ar *big.Int) *big.Int {
	r := new(big.Int).Add(sk, ar)
	return r.Mod(r, jubjub.Order())
}

// RandomizePublic returns vk + [ar] base, the public half of Randomize.
func RandomizePublic(vk *jubjub.Point, ar *big.Int, base *jubjub.Point) jubjub.Point {
	t := jubjub.Mul(base, ar)
	return jubjub.Add(vk, &t)
}

// Sign signs msg with sk under base.
// Steps:
//  1. Draw 80 random bytes T and derive the nonce r = H*(T || vk || msg)
//  2. R = [r] base
//  3. S = r + H*(R || vk || msg) * sk
func Sign(sk *big.Int, msg []byte, base *jubjub.Point) (Signature, error) {
	var sig Signature
	if sk.Sign() < 0 || sk.Cmp(jubjub.Order()) >= 0 {
		return sig, saplingerr.New(saplingerr.InvalidScalar, "redjubjub.Sign", "signing key out of range")
	}
	t, err := random.Bytes(nonceRandomSize)
	if err != nil {
		return sig, err
	}
	vk := PublicKey(sk, base)
	vkb := jubjub.EncodePoint(&vk)

	r := HashToScalar(t, vkb[:], msg)
	R := jubjub.Mul(base, r)
	rb := jubjub.EncodePoint(&R)

	c := HashToScalar(rb[:], vkb[:], msg)
	s := new(big.Int).Mul(c, sk)
	s.Add(s, r)
	s.Mod(s, jubjub.Order())

	sb := jubjub.EncodeScalar(s)
	copy(sig[:jubjub.PointSize], rb[:])
	copy(sig[jubjub.PointSize:], sb[:])
	return sig, nil
}

// Verify reports whether sig is a valid signature on msg by vk under base.
func Verify(vk *jubjub.Point, msg []byte, sig Signature, base *jubjub.Point) bool {
	R, err := jubjub.DecodePoint(sig[:jubjub.PointSize])
	if err != nil {
		return false
	}
	s, err := jubjub.DecodeScalar(sig[jubjub.PointSize:])
	if err != nil {
		return false
	}
	vkb := jubjub.EncodePoint(vk)
	c := HashToScalar(sig[:jubjub.PointSize], vkb[:], msg)

	lhs := jubjub.Mul(base, s)
	cv := jubjub.Mul(vk, c)
	rhs := jubjub.Add(&R, &cv)
	return lhs.Equal(&rhs)
}
