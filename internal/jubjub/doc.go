// Package jubjub holds the group and field plumbing shared by every other
// saplingcore package.
//
// Overview:
//   - Jubjub is the twisted Edwards curve defined over the BLS12-381 scalar field
//     (gnark-crypto ecc/bls12-381/twistededwards), so its points can be
//     manipulated cheaply inside BLS12-381 Groth16 circuits
//   - Points travel as 32-byte compressed encodings, scalars and field
//     elements as 32-byte little-endian integers
//   - Fixed generators are derived by hashing domain tags onto the curve
//   - MiMC over the BLS12-381 scalar field is the native twin of the in-circuit
//     hash used by the spend and output circuits
//
// Security Model:
//   - Every decoded point is checked to be on the curve, canonically encoded,
//     non-identity and inside the prime-order subgroup
//   - Scalars are rejected rather than reduced when they exceed the subgroup order
package jubjub
