// description.go - Spend and output descriptions and their wire encodings.
//
// Proofs are carried as CompactSize(len) || proof, where proof is the gnark
// WriteTo encoding of a Groth16 proof over BLS12-381.

package prover

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"saplingcore/internal/circuit"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/keyagreement"
	"saplingcore/internal/redjubjub"
	"saplingcore/internal/saplingerr"
)

// SpendDescription is the public part of a spend.
type SpendDescription struct {
	Cv           jubjub.Point
	Anchor       fr.Element
	Nullifier    fr.Element
	Rk           jubjub.Point
	Proof        []byte
	SpendAuthSig *redjubjub.Signature // nil until authorized
}

// Public returns the statement the proof is checked against.
func (d *SpendDescription) Public() *circuit.SpendPublic {
	return &circuit.SpendPublic{Cv: d.Cv, Anchor: d.Anchor, Nullifier: d.Nullifier, Rk: d.Rk}
}

// NullifierBytes returns the encoded nullifier.
func (d *SpendDescription) NullifierBytes() [32]byte {
	return jubjub.EncodeElement(&d.Nullifier)
}

// Authorize attaches a spend authorization signature.
func (d *SpendDescription) Authorize(sig redjubjub.Signature) {
	d.SpendAuthSig = &sig
}

// Bytes encodes cv || anchor || nf || rk || proof [|| spendAuthSig].
func (d *SpendDescription) Bytes() []byte {
	var buf bytes.Buffer
	writePoint(&buf, &d.Cv)
	writeElement(&buf, &d.Anchor)
	writeElement(&buf, &d.Nullifier)
	writePoint(&buf, &d.Rk)
	writeProof(&buf, d.Proof)
	if d.SpendAuthSig != nil {
		buf.Write(d.SpendAuthSig[:])
	}
	return buf.Bytes()
}

// ParseSpendDescription decodes the output of Bytes.
func ParseSpendDescription(b []byte) (*SpendDescription, error) {
	const op = "prover.ParseSpendDescription"
	r := bytes.NewReader(b)
	d := &SpendDescription{}
	var err error
	if d.Cv, err = readPoint(r); err != nil {
		return nil, err
	}
	if d.Anchor, err = readElement(op, r); err != nil {
		return nil, err
	}
	if d.Nullifier, err = readElement(op, r); err != nil {
		return nil, err
	}
	if d.Rk, err = readPoint(r); err != nil {
		return nil, err
	}
	if d.Proof, err = readProof(op, r); err != nil {
		return nil, err
	}
	switch r.Len() {
	case 0:
	case redjubjub.SignatureSize:
		var sig redjubjub.Signature
		_, _ = io.ReadFull(r, sig[:])
		d.SpendAuthSig = &sig
	default:
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "%d trailing bytes", r.Len())
	}
	return d, nil
}

// OutputDescription is the public part of an output. Descriptions built for
// a partial sender leave both ciphertexts zero; see Partial.
type OutputDescription struct {
	Cv            jubjub.Point
	Cmu           fr.Element
	Epk           jubjub.Point
	EncCiphertext [keyagreement.EncCiphertextSize]byte
	OutCiphertext [keyagreement.OutCiphertextSize]byte
	Proof         []byte
}

// Public returns the statement the proof is checked against.
func (d *OutputDescription) Public() *circuit.OutputPublic {
	return &circuit.OutputPublic{Cv: d.Cv, Cmu: d.Cmu, Epk: d.Epk}
}

// CmuBytes returns the encoded note commitment.
func (d *OutputDescription) CmuBytes() [32]byte {
	return jubjub.EncodeElement(&d.Cmu)
}

// Bytes encodes cv || cmu || epk || enc || out || proof.
func (d *OutputDescription) Bytes() []byte {
	var buf bytes.Buffer
	writePoint(&buf, &d.Cv)
	writeElement(&buf, &d.Cmu)
	writePoint(&buf, &d.Epk)
	buf.Write(d.EncCiphertext[:])
	buf.Write(d.OutCiphertext[:])
	writeProof(&buf, d.Proof)
	return buf.Bytes()
}

// ParseOutputDescription decodes the output of Bytes.
func ParseOutputDescription(b []byte) (*OutputDescription, error) {
	const op = "prover.ParseOutputDescription"
	r := bytes.NewReader(b)
	d := &OutputDescription{}
	var err error
	if d.Cv, err = readPoint(r); err != nil {
		return nil, err
	}
	if d.Cmu, err = readElement(op, r); err != nil {
		return nil, err
	}
	if d.Epk, err = readPoint(r); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, d.EncCiphertext[:]); err != nil {
		return nil, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	if _, err := io.ReadFull(r, d.OutCiphertext[:]); err != nil {
		return nil, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	if d.Proof, err = readProof(op, r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "%d trailing bytes", r.Len())
	}
	return d, nil
}

// Partial strips everything the caller supplies for a partial output.
func (d *OutputDescription) Partial() *PartialOutputDescription {
	return &PartialOutputDescription{Cv: d.Cv, Cmu: d.Cmu, Proof: d.Proof}
}

// PartialOutputDescription is an output whose epk and ciphertexts are
// attached by the caller.
type PartialOutputDescription struct {
	Cv    jubjub.Point
	Cmu   fr.Element
	Proof []byte
}

// Bytes encodes cv || cmu || proof.
func (d *PartialOutputDescription) Bytes() []byte {
	var buf bytes.Buffer
	writePoint(&buf, &d.Cv)
	writeElement(&buf, &d.Cmu)
	writeProof(&buf, d.Proof)
	return buf.Bytes()
}

// Complete attaches epk and the note ciphertexts.
func (d *PartialOutputDescription) Complete(epk jubjub.Point, c *keyagreement.Ciphertexts) *OutputDescription {
	out := &OutputDescription{Cv: d.Cv, Cmu: d.Cmu, Epk: epk, Proof: d.Proof}
	if c != nil {
		out.EncCiphertext = c.Enc
		out.OutCiphertext = c.Out
	}
	return out
}

// ParsePartialOutputDescription decodes the output of Bytes.
func ParsePartialOutputDescription(b []byte) (*PartialOutputDescription, error) {
	const op = "prover.ParsePartialOutputDescription"
	r := bytes.NewReader(b)
	d := &PartialOutputDescription{}
	var err error
	if d.Cv, err = readPoint(r); err != nil {
		return nil, err
	}
	if d.Cmu, err = readElement(op, r); err != nil {
		return nil, err
	}
	if d.Proof, err = readProof(op, r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "%d trailing bytes", r.Len())
	}
	return d, nil
}

func writePoint(buf *bytes.Buffer, p *jubjub.Point) {
	b := jubjub.EncodePoint(p)
	buf.Write(b[:])
}

func writeElement(buf *bytes.Buffer, e *fr.Element) {
	b := jubjub.EncodeElement(e)
	buf.Write(b[:])
}

func writeProof(buf *bytes.Buffer, proof []byte) {
	writeCompactSize(buf, uint64(len(proof)))
	buf.Write(proof)
}

func readPoint(r *bytes.Reader) (jubjub.Point, error) {
	var b [jubjub.PointSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return jubjub.Point{}, saplingerr.Wrap(saplingerr.InvalidInput, "prover.readPoint", err)
	}
	return jubjub.DecodePoint(b[:])
}

func readElement(op string, r *bytes.Reader) (fr.Element, error) {
	var b [jubjub.ElementSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return fr.Element{}, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	return jubjub.DecodeElement(b[:])
}

func readProof(op string, r *bytes.Reader) ([]byte, error) {
	n, err := readCompactSize(r)
	if err != nil {
		return nil, saplingerr.Wrap(saplingerr.InvalidInput, op, err)
	}
	if n == 0 || n > uint64(r.Len()) {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "proof length %d with %d bytes left", n, r.Len())
	}
	proof := make([]byte, n)
	_, _ = io.ReadFull(r, proof)
	return proof, nil
}

func writeCompactSize(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xFD:
		buf.WriteByte(byte(n))
	case n <= 0xFFFF:
		buf.WriteByte(0xFD)
		_ = binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xFFFFFFFF:
		buf.WriteByte(0xFE)
		_ = binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xFF)
		_ = binary.Write(buf, binary.LittleEndian, n)
	}
}

func readCompactSize(r io.Reader) (uint64, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, err
	}
	switch first[0] {
	case 0xFD:
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return uint64(v), err
	case 0xFE:
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return uint64(v), err
	case 0xFF:
		var v uint64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	default:
		return uint64(first[0]), nil
	}
}
