// grouphash.go - Hashing byte strings onto the prime-order subgroup, and the fixed generators.

package jubjub

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/minio/blake2b-simd"
)

// Personalizations used for group hashing.
const (
	DiversifierPersonalization = "Zcash_gd"
	generatorPersonalization   = "Zcash_PH"
)

// GroupHash hashes msg under the given personalization and maps the digest
// onto the prime-order subgroup. ok is false when the digest is not a valid
// point encoding or the cofactor-cleared point is the identity.
func GroupHash(personalization string, msg []byte) (p Point, ok bool) {
	h, err := blake2b.New(&blake2b.Config{Size: 32, Person: []byte(personalization)})
	if err != nil {
		return p, false
	}
	h.Write(msg)
	digest := h.Sum(nil)

	var candidate Point
	if _, err := candidate.SetBytes(digest); err != nil {
		return p, false
	}
	if !candidate.IsOnCurve() {
		return p, false
	}
	enc := candidate.Bytes()
	if !bytes.Equal(enc[:], digest) {
		return p, false
	}
	p = MulByCofactor(&candidate)
	if p.IsZero() {
		return p, false
	}
	return p, true
}

// findGroupHash appends an increasing counter byte to tag until GroupHash succeeds.
func findGroupHash(tag string) Point {
	msg := append([]byte(tag), 0)
	for i := 0; i < 256; i++ {
		msg[len(msg)-1] = byte(i)
		if p, ok := GroupHash(generatorPersonalization, msg); ok {
			return p
		}
	}
	panic(fmt.Sprintf("jubjub: no generator found for tag %q", tag))
}

// Generators are the fixed bases of the protocol.
type Generators struct {
	SpendAuth         Point // ak = [ask]SpendAuth, rk randomization
	ProofGeneration   Point // nk = [nsk]ProofGeneration
	NoteCommitment    Point // message base of the note commitment
	NoteRandomness    Point // trapdoor base of the note commitment
	NullifierPosition Point // rho = cm + [pos]NullifierPosition
	ValueCommitment   Point // cv = [v]ValueCommitment + [rcv]ValueRandomness
	ValueRandomness   Point // binding signature base
}

var (
	generatorsOnce sync.Once
	generators     Generators
)

// Bases returns the protocol generators, computing them on first use.
func Bases() *Generators {
	generatorsOnce.Do(func() {
		generators = Generators{
			SpendAuth:         findGroupHash("spend_authorizing_key"),
			ProofGeneration:   findGroupHash("proof_generation_key"),
			NoteCommitment:    findGroupHash("note_commitment_message"),
			NoteRandomness:    findGroupHash("note_commitment_randomness"),
			NullifierPosition: findGroupHash("nullifier_position"),
			ValueCommitment:   findGroupHash("value_commitment_value"),
			ValueRandomness:   findGroupHash("value_commitment_randomness"),
		}
	})
	return &generators
}
