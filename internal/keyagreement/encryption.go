// encryption.go - In-band note encryption to the recipient and recovery by the sender.
//
// enc = ChaCha20Poly1305(KDF([8 esk] pk_d, epk), 0x01 || d || v || rcm || memo)
// out = ChaCha20Poly1305(ock(ovk, cv, cmu, epk), pk_d || esk)

package keyagreement

import (
	"encoding/binary"
	"math/big"

	"github.com/minio/blake2b-simd"
	"golang.org/x/crypto/chacha20poly1305"

	"saplingcore/internal/address"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/keys"
	"saplingcore/internal/note"
	"saplingcore/internal/random"
	"saplingcore/internal/saplingerr"
)

const (
	// MemoSize is the length of a memo field.
	MemoSize = 512

	notePlaintextSize = 1 + address.DiversifierSize + 8 + jubjub.ScalarSize + MemoSize
	outPlaintextSize  = jubjub.PointSize + jubjub.ScalarSize

	// EncCiphertextSize and OutCiphertextSize include the Poly1305 tag.
	EncCiphertextSize = notePlaintextSize + chacha20poly1305.Overhead
	OutCiphertextSize = outPlaintextSize + chacha20poly1305.Overhead

	leadByte           = 0x01
	ockPersonalization = "Zcash_Derive_ock"
)

// Memo is the free-form payload carried with a note.
type Memo [MemoSize]byte

// EmptyMemo is 0xF6 followed by zeros.
func EmptyMemo() Memo {
	var m Memo
	m[0] = 0xF6
	return m
}

// ParseMemo zero-pads b to a full memo. An empty b yields EmptyMemo.
func ParseMemo(b []byte) (Memo, error) {
	if len(b) == 0 {
		return EmptyMemo(), nil
	}
	var m Memo
	if len(b) > MemoSize {
		return m, saplingerr.New(saplingerr.InvalidInput, "keyagreement.ParseMemo", "memo of %d bytes exceeds %d", len(b), MemoSize)
	}
	copy(m[:], b)
	return m, nil
}

// Ciphertexts holds everything an output publishes for decryption.
type Ciphertexts struct {
	Epk jubjub.Point
	Enc [EncCiphertextSize]byte
	Out [OutCiphertextSize]byte
}

var zeroNonce [chacha20poly1305.NonceSize]byte

func seal(key [32]byte, plaintext []byte, dst []byte) error {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return err
	}
	aead.Seal(dst[:0], zeroNonce[:], plaintext, nil)
	return nil
}

func open(key [32]byte, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, zeroNonce[:], ciphertext, nil)
}

// OutgoingCipherKey derives the key protecting the sender's recovery data.
func OutgoingCipherKey(ovk keys.OutgoingViewingKey, cv, epk *jubjub.Point, cmu [note.CmuSize]byte) [32]byte {
	cvb := jubjub.EncodePoint(cv)
	epkb := jubjub.EncodePoint(epk)
	h, _ := blake2b.New(&blake2b.Config{Size: 32, Person: []byte(ockPersonalization)})
	h.Write(ovk[:])
	h.Write(cvb[:])
	h.Write(cmu[:])
	h.Write(epkb[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

func encodeNotePlaintext(n *note.Note, memo Memo) []byte {
	pt := make([]byte, 0, notePlaintextSize)
	pt = append(pt, leadByte)
	pt = append(pt, n.Address.D[:]...)
	pt = binary.LittleEndian.AppendUint64(pt, n.Value)
	rcm := jubjub.EncodeScalar(n.Rcm)
	pt = append(pt, rcm[:]...)
	return append(pt, memo[:]...)
}

// Encrypt encrypts n to its recipient under esk and, when ovk is non-nil,
// lets the holder of ovk recover it later. Without ovk the out ciphertext is
// random bytes.
func Encrypt(n *note.Note, memo Memo, esk *big.Int, ovk *keys.OutgoingViewingKey, cv *jubjub.Point) (*Ciphertexts, error) {
	const op = "keyagreement.Encrypt"
	epk, err := DeriveEphemeralKey(n.Address.D, esk)
	if err != nil {
		return nil, err
	}
	c := &Ciphertexts{Epk: epk}

	shared := Agree(&n.Address.PkD, esk)
	if err := seal(KDF(&shared, &epk), encodeNotePlaintext(n, memo), c.Enc[:]); err != nil {
		return nil, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}

	if ovk == nil {
		junk, err := random.Bytes(OutCiphertextSize)
		if err != nil {
			return nil, err
		}
		copy(c.Out[:], junk)
		return c, nil
	}
	pkd := jubjub.EncodePoint(&n.Address.PkD)
	eskb := jubjub.EncodeScalar(esk)
	ock := OutgoingCipherKey(*ovk, cv, &epk, n.Cmu())
	if err := seal(ock, append(pkd[:], eskb[:]...), c.Out[:]); err != nil {
		return nil, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	return c, nil
}

func decodeNotePlaintext(op string, pt []byte, pkd jubjub.Point) (*note.Note, Memo, error) {
	var memo Memo
	if len(pt) != notePlaintextSize || pt[0] != leadByte {
		return nil, memo, saplingerr.New(saplingerr.InvalidInput, op, "malformed note plaintext")
	}
	d, _ := address.ParseDiversifier(pt[1 : 1+address.DiversifierSize])
	if !d.IsValid() {
		return nil, memo, saplingerr.New(saplingerr.InvalidInput, op, "plaintext diversifier is invalid")
	}
	off := 1 + address.DiversifierSize
	value := binary.LittleEndian.Uint64(pt[off:])
	off += 8
	rcm, err := jubjub.DecodeScalar(pt[off : off+jubjub.ScalarSize])
	if err != nil {
		return nil, memo, err
	}
	off += jubjub.ScalarSize
	copy(memo[:], pt[off:])
	n := &note.Note{Address: &address.PaymentAddress{D: d, PkD: pkd}, Value: value, Rcm: rcm}
	return n, memo, nil
}

// TryDecrypt decrypts an output with the recipient's ivk. It fails unless the
// recovered note opens cmu.
func TryDecrypt(ivk keys.IncomingViewingKey, epk *jubjub.Point, cmu [note.CmuSize]byte, enc []byte) (*note.Note, Memo, error) {
	const op = "keyagreement.TryDecrypt"
	shared := Agree(epk, ivk.Scalar())
	pt, err := open(KDF(&shared, epk), enc)
	if err != nil {
		return nil, Memo{}, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	if len(pt) != notePlaintextSize {
		return nil, Memo{}, saplingerr.New(saplingerr.InvalidInput, op, "malformed note plaintext")
	}
	var d address.Diversifier
	copy(d[:], pt[1:1+address.DiversifierSize])
	addr, err := address.FromIncomingViewingKey(ivk, d)
	if err != nil {
		return nil, Memo{}, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	n, memo, err := decodeNotePlaintext(op, pt, addr.PkD)
	if err != nil {
		return nil, Memo{}, err
	}
	if n.Cmu() != cmu {
		return nil, Memo{}, saplingerr.New(saplingerr.InvalidInput, op, "note does not open the commitment")
	}
	return n, memo, nil
}

// TryRecover lets the sender decrypt an output they created using ovk.
func TryRecover(ovk keys.OutgoingViewingKey, cv, epk *jubjub.Point, cmu [note.CmuSize]byte, enc, out []byte) (*note.Note, Memo, error) {
	const op = "keyagreement.TryRecover"
	opt, err := open(OutgoingCipherKey(ovk, cv, epk, cmu), out)
	if err != nil {
		return nil, Memo{}, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	if len(opt) != outPlaintextSize {
		return nil, Memo{}, saplingerr.New(saplingerr.InvalidInput, op, "malformed out plaintext")
	}
	pkd, err := jubjub.DecodePoint(opt[:jubjub.PointSize])
	if err != nil {
		return nil, Memo{}, err
	}
	esk, err := jubjub.DecodeScalar(opt[jubjub.PointSize:])
	if err != nil {
		return nil, Memo{}, err
	}
	shared := Agree(&pkd, esk)
	pt, err := open(KDF(&shared, epk), enc)
	if err != nil {
		return nil, Memo{}, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	n, memo, err := decodeNotePlaintext(op, pt, pkd)
	if err != nil {
		return nil, Memo{}, err
	}
	check, err := DeriveEphemeralKey(n.Address.D, esk)
	if err != nil || !check.Equal(epk) {
		return nil, Memo{}, saplingerr.New(saplingerr.InvalidInput, op, "epk does not match recovered esk")
	}
	if n.Cmu() != cmu {
		return nil, Memo{}, saplingerr.New(saplingerr.InvalidInput, op, "note does not open the commitment")
	}
	return n, memo, nil
}
