// note.go - Notes, note commitments, nullifiers and value commitments.
//
// A note commitment is a Pedersen-style commitment over Jubjub:
//
//	h   = trunc251(MiMC(g_d.x, g_d.y, pk_d.x, pk_d.y, v))
//	cm  = [h] NoteCommitment + [rcm] NoteRandomness
//	cmu = cm.x
//
// and the nullifier binds the note to its tree position:
//
//	rho = cm + [pos] NullifierPosition
//	nf  = MiMC(nk.x, nk.y, rho.x, rho.y)

// Package note implements the commitment scheme: note commitments,
// nullifiers and value commitments.
package note

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"saplingcore/internal/address"
	"saplingcore/internal/jubjub"
	"saplingcore/internal/keys"
	"saplingcore/internal/saplingerr"
)

// Sizes of encoded commitment outputs.
const (
	CmuSize       = jubjub.ElementSize
	NullifierSize = jubjub.ElementSize
)

// Note is a unit of hidden value addressed to a payment address.
type Note struct {
	Address *address.PaymentAddress
	Value   uint64
	Rcm     *big.Int // commitment trapdoor, below r_J
}

// New builds a note from encoded parts. rcm must be a canonical scalar.
func New(addr []byte, value uint64, rcm []byte) (*Note, error) {
	a, err := address.Parse(addr)
	if err != nil {
		return nil, err
	}
	r, err := jubjub.DecodeScalar(rcm)
	if err != nil {
		return nil, err
	}
	return &Note{Address: a, Value: value, Rcm: r}, nil
}

// MessageHash returns the truncated hash committed under the message base.
func (n *Note) MessageHash() *big.Int {
	gd := n.Address.Base()
	var v fr.Element
	v.SetUint64(n.Value)
	h := jubjub.HashPoints([]*jubjub.Point{&gd, &n.Address.PkD}, &v)
	return jubjub.Truncate(&h)
}

// Commitment returns the full commitment point cm.
func (n *Note) Commitment() jubjub.Point {
	g := jubjub.Bases()
	msg := jubjub.Mul(&g.NoteCommitment, n.MessageHash())
	blind := jubjub.Mul(&g.NoteRandomness, n.Rcm)
	return jubjub.Add(&msg, &blind)
}

// CmuElement returns cm.x as a field element.
func (n *Note) CmuElement() fr.Element {
	return n.Commitment().X
}

// Cmu returns the encoded u-coordinate of the commitment.
func (n *Note) Cmu() [CmuSize]byte {
	x := n.CmuElement()
	return jubjub.EncodeElement(&x)
}

// Rho returns cm + [position] NullifierPosition.
func (n *Note) Rho(position uint64) jubjub.Point {
	cm := n.Commitment()
	pos := jubjub.Mul(&jubjub.Bases().NullifierPosition, new(big.Int).SetUint64(position))
	return jubjub.Add(&cm, &pos)
}

// NullifierElement returns the nullifier as a field element.
func (n *Note) NullifierElement(nk *jubjub.Point, position uint64) fr.Element {
	rho := n.Rho(position)
	return jubjub.HashPoints([]*jubjub.Point{nk, &rho})
}

// Nullifier returns the encoded nullifier of n at position for nullifier key nk.
func (n *Note) Nullifier(nk *jubjub.Point, position uint64) [NullifierSize]byte {
	e := n.NullifierElement(nk, position)
	return jubjub.EncodeElement(&e)
}

// NullifierWithViewingKey computes the nullifier using the nk of xfvk.
func NullifierWithViewingKey(xfvk *keys.ExtendedFullViewingKey, n *Note, position uint64) [NullifierSize]byte {
	nk := xfvk.NullifierKey()
	return n.Nullifier(&nk, position)
}

// ValueCommitment returns cv = [v] ValueCommitment + [rcv] ValueRandomness.
func ValueCommitment(value uint64, rcv *big.Int) jubjub.Point {
	g := jubjub.Bases()
	v := jubjub.Mul(&g.ValueCommitment, new(big.Int).SetUint64(value))
	r := jubjub.Mul(&g.ValueRandomness, rcv)
	return jubjub.Add(&v, &r)
}

// ParseCmu decodes an encoded commitment.
func ParseCmu(b []byte) (fr.Element, error) {
	e, err := jubjub.DecodeElement(b)
	if err != nil {
		return e, saplingerr.Wrap(saplingerr.InvalidInput, "note.ParseCmu", err)
	}
	return e, nil
}
