// commitment.go - Byte-slice entry points for note commitments, nullifiers,
// tree hashing, key agreement and note decryption.

package sapling

import (
	"encoding/binary"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/keyagreement"
	"saplingcore/internal/keys"
	"saplingcore/internal/merkle"
	"saplingcore/internal/note"
	"saplingcore/internal/random"
	"saplingcore/internal/saplingerr"
)

// ComputeCMU returns the note commitment of (addr, value, rcm).
func ComputeCMU(addr []byte, value uint64, rcm []byte) ([]byte, error) {
	n, err := note.New(addr, value, rcm)
	if err != nil {
		return nil, err
	}
	cmu := n.Cmu()
	return cmu[:], nil
}

// ComputeNullifierWithXFVK returns the nullifier of the note at position.
func ComputeNullifierWithXFVK(xfvk, addr []byte, value uint64, rcm []byte, position uint64) ([]byte, error) {
	k, err := keys.ParseExtendedFullViewingKey(xfvk)
	if err != nil {
		return nil, err
	}
	n, err := note.New(addr, value, rcm)
	if err != nil {
		return nil, err
	}
	nf := note.NullifierWithViewingKey(k, n, position)
	return nf[:], nil
}

// MerkleHash combines two tree nodes at depth.
func MerkleHash(depth uint64, lhs, rhs []byte) ([]byte, error) {
	if depth >= merkle.Depth {
		return nil, saplingerr.New(saplingerr.InvalidDepth, "sapling.MerkleHash", "depth %d not below %d", depth, merkle.Depth)
	}
	out, err := merkle.HashBytes(int(depth), lhs, rhs)
	if err != nil {
		return nil, err
	}
	return out[:], nil
}

// KeyAgreement returns [8 sk] p.
func KeyAgreement(p, sk []byte) ([]byte, error) {
	out, err := keyagreement.AgreeBytes(p, sk)
	if err != nil {
		return nil, err
	}
	return out[:], nil
}

// DeriveEPKFromESK returns [esk] g_d.
func DeriveEPKFromESK(diversifier, esk []byte) ([]byte, error) {
	out, err := keyagreement.DeriveEphemeralKeyBytes(diversifier, esk)
	if err != nil {
		return nil, err
	}
	return out[:], nil
}

// RandR returns a fresh uniformly random scalar.
func RandR() ([]byte, error) {
	return random.ScalarBytes()
}

// TryDecryptNote opens an output ciphertext with an incoming viewing key and
// returns value_le || rcm || memo.
func TryDecryptNote(ivk, epk, cmu, enc []byte) ([]byte, error) {
	const op = "sapling.TryDecryptNote"
	k, err := keys.ParseIncomingViewingKey(ivk)
	if err != nil {
		return nil, err
	}
	e, err := jubjub.DecodePoint(epk)
	if err != nil {
		return nil, err
	}
	if len(cmu) != note.CmuSize {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "cmu must be %d bytes", note.CmuSize)
	}
	var c [note.CmuSize]byte
	copy(c[:], cmu)
	n, memo, err := keyagreement.TryDecrypt(k, &e, c, enc)
	if err != nil {
		return nil, err
	}
	return notePayload(n, memo), nil
}

func notePayload(n *note.Note, memo keyagreement.Memo) []byte {
	out := make([]byte, 0, 8+jubjub.ScalarSize+keyagreement.MemoSize)
	out = binary.LittleEndian.AppendUint64(out, n.Value)
	rcm := jubjub.EncodeScalar(n.Rcm)
	out = append(out, rcm[:]...)
	return append(out, memo[:]...)
}
