// keys.go - Spending and viewing key hierarchy.
//
// Keys follow the shape of ZIP-32: a master key is hashed out of the seed, each
// child mixes the parent's chain code and key material through PRF^expand, and
// viewing keys are obtained one-way by multiplying secret scalars onto fixed
// generators.

// Package keys derives extended spending keys, full/incoming/outgoing viewing
// keys and proof authorizing keys from a seed and a derivation path.
package keys

import (
	"encoding/binary"
	"math/big"

	"github.com/minio/blake2b-simd"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/saplingerr"
)

const (
	// SeedMinSize and SeedMaxSize bound the accepted seed length.
	SeedMinSize = 32
	SeedMaxSize = 252

	// ExtendedKeySize is the encoded size of both extended key types.
	ExtendedKeySize = 1 + 4 + 4 + 32 + 32 + 32 + 32 + 32

	// ProofAuthorizingKeySize is the encoded size of ak || nsk.
	ProofAuthorizingKeySize = 64

	// OutgoingViewingKeySize and DiversifierKeySize are 32 opaque bytes each.
	OutgoingViewingKeySize = 32
	DiversifierKeySize     = 32
)

const (
	masterPersonalization      = "ZcashIP32Sapling"
	expandPersonalization      = "Zcash_ExpandSeed"
	fingerprintPersonalization = "ZcashSaplingFVFP"
)

// PRF^expand domain bytes.
const (
	domainAsk         = 0x00
	domainNsk         = 0x01
	domainOvk         = 0x02
	domainDk          = 0x10
	domainHardened    = 0x11
	domainNonHardened = 0x12
	domainChildAsk    = 0x13
	domainChildNsk    = 0x14
	domainChildOvk    = 0x15
	domainChildDk     = 0x16
)

// OutgoingViewingKey lets a sender recover the notes they created.
type OutgoingViewingKey [OutgoingViewingKeySize]byte

// DiversifierKey keys the diversifier permutation.
type DiversifierKey [DiversifierKeySize]byte

// ExpandedSpendingKey is the secret part of a spending key.
type ExpandedSpendingKey struct {
	Ask *big.Int // spend authorizing scalar
	Nsk *big.Int // nullifier-deriving secret scalar
	Ovk OutgoingViewingKey
}

// FullViewingKey is the public image of an ExpandedSpendingKey.
type FullViewingKey struct {
	Ak  jubjub.Point // [ask] SpendAuth
	Nk  jubjub.Point // [nsk] ProofGeneration
	Ovk OutgoingViewingKey
}

// ExtendedSpendingKey is a node of the spending key tree.
type ExtendedSpendingKey struct {
	Depth      uint8
	ParentTag  [4]byte
	ChildIndex ChildIndex
	ChainCode  [32]byte
	Expsk      ExpandedSpendingKey
	Dk         DiversifierKey
}

// ExtendedFullViewingKey is a node of the viewing key tree.
type ExtendedFullViewingKey struct {
	Depth      uint8
	ParentTag  [4]byte
	ChildIndex ChildIndex
	ChainCode  [32]byte
	Fvk        FullViewingKey
	Dk         DiversifierKey
}

func prfExpand(key []byte, parts ...[]byte) [64]byte {
	h, _ := blake2b.New(&blake2b.Config{Size: 64, Person: []byte(expandPersonalization)})
	h.Write(key)
	for _, p := range parts {
		h.Write(p)
	}
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

func expandScalar(key []byte, domain byte) *big.Int {
	wide := prfExpand(key, []byte{domain})
	return jubjub.ReduceWide(wide[:])
}

func expandSpendingKey(sk []byte) ExpandedSpendingKey {
	ovk := prfExpand(sk, []byte{domainOvk})
	e := ExpandedSpendingKey{
		Ask: expandScalar(sk, domainAsk),
		Nsk: expandScalar(sk, domainNsk),
	}
	copy(e.Ovk[:], ovk[:OutgoingViewingKeySize])
	return e
}

// MasterKey derives the root extended spending key from seed.
func MasterKey(seed []byte) (*ExtendedSpendingKey, error) {
	if len(seed) < SeedMinSize || len(seed) > SeedMaxSize {
		return nil, saplingerr.New(saplingerr.InvalidInput, "keys.MasterKey",
			"seed must be %d..%d bytes, got %d", SeedMinSize, SeedMaxSize, len(seed))
	}
	h, _ := blake2b.New(&blake2b.Config{Size: 64, Person: []byte(masterPersonalization)})
	h.Write(seed)
	i := h.Sum(nil)
	sk, c := i[:32], i[32:]

	xsk := &ExtendedSpendingKey{Expsk: expandSpendingKey(sk)}
	copy(xsk.ChainCode[:], c)
	dk := prfExpand(sk, []byte{domainDk})
	copy(xsk.Dk[:], dk[:DiversifierKeySize])
	return xsk, nil
}

// DeriveSpendingKey derives the extended spending key at path from seed.
func DeriveSpendingKey(seed []byte, path string) (*ExtendedSpendingKey, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	xsk, err := MasterKey(seed)
	if err != nil {
		return nil, err
	}
	for _, i := range indices {
		if xsk, err = xsk.Child(i); err != nil {
			return nil, err
		}
	}
	return xsk, nil
}

// Derive walks path starting from xsk. The leading "m" denotes xsk itself.
func (xsk *ExtendedSpendingKey) Derive(path string) (*ExtendedSpendingKey, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	cur := xsk
	for _, i := range indices {
		if cur, err = cur.Child(i); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// childTweaks holds the additive deltas produced by one derivation step.
type childTweaks struct {
	ask, nsk  *big.Int
	ovk       OutgoingViewingKey
	dk        DiversifierKey
	chainCode [32]byte
}

func deriveTweaks(chainCode []byte, prefix []byte, ovk OutgoingViewingKey, dk DiversifierKey) childTweaks {
	i := prfExpand(chainCode, prefix)
	il, ir := i[:32], i[32:]

	t := childTweaks{
		ask: expandScalar(il, domainChildAsk),
		nsk: expandScalar(il, domainChildNsk),
	}
	o := prfExpand(il, []byte{domainChildOvk}, ovk[:])
	copy(t.ovk[:], o[:OutgoingViewingKeySize])
	d := prfExpand(il, []byte{domainChildDk}, dk[:])
	copy(t.dk[:], d[:DiversifierKeySize])
	copy(t.chainCode[:], ir)
	return t
}

func indexBytes(i ChildIndex) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(i))
	return b[:]
}

// Child derives the child spending key at index i.
func (xsk *ExtendedSpendingKey) Child(i ChildIndex) (*ExtendedSpendingKey, error) {
	if xsk.Depth == 255 {
		return nil, saplingerr.New(saplingerr.InvalidDerivationPath, "keys.Child", "maximum depth reached")
	}
	fvk := xsk.Expsk.FullViewingKey()

	var prefix []byte
	if i.IsHardened() {
		ask := jubjub.EncodeScalar(xsk.Expsk.Ask)
		nsk := jubjub.EncodeScalar(xsk.Expsk.Nsk)
		prefix = concat([]byte{domainHardened}, ask[:], nsk[:], xsk.Expsk.Ovk[:], xsk.Dk[:], indexBytes(i))
	} else {
		prefix = nonHardenedPrefix(&fvk, xsk.Dk, i)
	}
	t := deriveTweaks(xsk.ChainCode[:], prefix, xsk.Expsk.Ovk, xsk.Dk)

	order := jubjub.Order()
	child := &ExtendedSpendingKey{
		Depth:      xsk.Depth + 1,
		ParentTag:  fvk.Tag(xsk.Dk),
		ChildIndex: i,
		ChainCode:  t.chainCode,
		Expsk: ExpandedSpendingKey{
			Ask: new(big.Int).Mod(new(big.Int).Add(xsk.Expsk.Ask, t.ask), order),
			Nsk: new(big.Int).Mod(new(big.Int).Add(xsk.Expsk.Nsk, t.nsk), order),
			Ovk: t.ovk,
		},
		Dk: t.dk,
	}
	return child, nil
}

func nonHardenedPrefix(fvk *FullViewingKey, dk DiversifierKey, i ChildIndex) []byte {
	ak := jubjub.EncodePoint(&fvk.Ak)
	nk := jubjub.EncodePoint(&fvk.Nk)
	return concat([]byte{domainNonHardened}, ak[:], nk[:], fvk.Ovk[:], dk[:], indexBytes(i))
}

// FullViewingKey returns the viewing key of the expanded spending key.
func (e *ExpandedSpendingKey) FullViewingKey() FullViewingKey {
	g := jubjub.Bases()
	return FullViewingKey{
		Ak:  jubjub.Mul(&g.SpendAuth, e.Ask),
		Nk:  jubjub.Mul(&g.ProofGeneration, e.Nsk),
		Ovk: e.Ovk,
	}
}

// Tag is the 4-byte fingerprint prefix identifying this key as a parent.
func (fvk *FullViewingKey) Tag(dk DiversifierKey) [4]byte {
	ak := jubjub.EncodePoint(&fvk.Ak)
	nk := jubjub.EncodePoint(&fvk.Nk)
	h, _ := blake2b.New(&blake2b.Config{Size: 32, Person: []byte(fingerprintPersonalization)})
	h.Write(ak[:])
	h.Write(nk[:])
	h.Write(fvk.Ovk[:])
	h.Write(dk[:])
	var tag [4]byte
	copy(tag[:], h.Sum(nil))
	return tag
}

// IncomingViewingKey returns ivk = trunc(MiMC(ak, nk)).
func (fvk *FullViewingKey) IncomingViewingKey() IncomingViewingKey {
	h := jubjub.HashPoints([]*jubjub.Point{&fvk.Ak, &fvk.Nk})
	return IncomingViewingKey{scalar: jubjub.Truncate(&h)}
}

// FullViewingKey returns the extended viewing key of xsk.
func (xsk *ExtendedSpendingKey) FullViewingKey() *ExtendedFullViewingKey {
	return &ExtendedFullViewingKey{
		Depth:      xsk.Depth,
		ParentTag:  xsk.ParentTag,
		ChildIndex: xsk.ChildIndex,
		ChainCode:  xsk.ChainCode,
		Fvk:        xsk.Expsk.FullViewingKey(),
		Dk:         xsk.Dk,
	}
}

// ProofAuthorizingKey returns the key needed to build spend proofs without
// the spend authorizing scalar.
func (xsk *ExtendedSpendingKey) ProofAuthorizingKey() *ProofAuthorizingKey {
	g := jubjub.Bases()
	return &ProofAuthorizingKey{
		Ak:  jubjub.Mul(&g.SpendAuth, xsk.Expsk.Ask),
		Nsk: new(big.Int).Set(xsk.Expsk.Nsk),
	}
}

// Child derives the non-hardened child viewing key at index i. Hardened
// indices need the spending key and fail with InvalidDerivationPath.
func (xfvk *ExtendedFullViewingKey) Child(i ChildIndex) (*ExtendedFullViewingKey, error) {
	const op = "keys.ExtendedFullViewingKey.Child"
	if i.IsHardened() {
		return nil, saplingerr.New(saplingerr.InvalidDerivationPath, op, "hardened index %s needs a spending key", i)
	}
	if xfvk.Depth == 255 {
		return nil, saplingerr.New(saplingerr.InvalidDerivationPath, op, "maximum depth reached")
	}
	t := deriveTweaks(xfvk.ChainCode[:], nonHardenedPrefix(&xfvk.Fvk, xfvk.Dk, i), xfvk.Fvk.Ovk, xfvk.Dk)

	g := jubjub.Bases()
	dAk := jubjub.Mul(&g.SpendAuth, t.ask)
	dNk := jubjub.Mul(&g.ProofGeneration, t.nsk)
	return &ExtendedFullViewingKey{
		Depth:      xfvk.Depth + 1,
		ParentTag:  xfvk.Fvk.Tag(xfvk.Dk),
		ChildIndex: i,
		ChainCode:  t.chainCode,
		Fvk: FullViewingKey{
			Ak:  jubjub.Add(&xfvk.Fvk.Ak, &dAk),
			Nk:  jubjub.Add(&xfvk.Fvk.Nk, &dNk),
			Ovk: t.ovk,
		},
		Dk: t.dk,
	}, nil
}

// Derive walks a non-hardened path starting from xfvk.
func (xfvk *ExtendedFullViewingKey) Derive(path string) (*ExtendedFullViewingKey, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	cur := xfvk
	for _, i := range indices {
		if cur, err = cur.Child(i); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// IncomingViewingKey returns the ivk of this viewing key.
func (xfvk *ExtendedFullViewingKey) IncomingViewingKey() IncomingViewingKey {
	return xfvk.Fvk.IncomingViewingKey()
}

// OutgoingViewingKey returns the ovk of this viewing key.
func (xfvk *ExtendedFullViewingKey) OutgoingViewingKey() OutgoingViewingKey {
	return xfvk.Fvk.Ovk
}

// NullifierKey returns nk.
func (xfvk *ExtendedFullViewingKey) NullifierKey() jubjub.Point {
	return xfvk.Fvk.Nk
}

// IncomingViewingKey decrypts notes and derives payment addresses.
type IncomingViewingKey struct {
	scalar *big.Int
}

// ParseIncomingViewingKey decodes a 32-byte little-endian ivk.
func ParseIncomingViewingKey(b []byte) (IncomingViewingKey, error) {
	s, err := jubjub.DecodeScalar(b)
	if err != nil {
		return IncomingViewingKey{}, err
	}
	if s.Sign() == 0 {
		return IncomingViewingKey{}, saplingerr.New(saplingerr.InvalidScalar, "keys.ParseIncomingViewingKey", "zero ivk")
	}
	return IncomingViewingKey{scalar: s}, nil
}

// Scalar returns a copy of the ivk scalar.
func (ivk IncomingViewingKey) Scalar() *big.Int {
	if ivk.scalar == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(ivk.scalar)
}

// Bytes returns the little-endian encoding.
func (ivk IncomingViewingKey) Bytes() [32]byte {
	return jubjub.EncodeScalar(ivk.Scalar())
}

// ProofAuthorizingKey is ak || nsk: enough to prove a spend, not to sign it.
type ProofAuthorizingKey struct {
	Ak  jubjub.Point
	Nsk *big.Int
}

// ProofAuthorizingKey lets *ProofAuthorizingKey and *ExtendedSpendingKey be
// used interchangeably as spend credentials.
func (pak *ProofAuthorizingKey) ProofAuthorizingKey() *ProofAuthorizingKey { return pak }

// NullifierKey returns nk = [nsk] ProofGeneration.
func (pak *ProofAuthorizingKey) NullifierKey() jubjub.Point {
	return jubjub.Mul(&jubjub.Bases().ProofGeneration, pak.Nsk)
}

// IncomingViewingKey returns the ivk matching this proof authorizing key.
func (pak *ProofAuthorizingKey) IncomingViewingKey() IncomingViewingKey {
	fvk := FullViewingKey{Ak: pak.Ak, Nk: pak.NullifierKey()}
	return fvk.IncomingViewingKey()
}

// Bytes returns ak || nsk.
func (pak *ProofAuthorizingKey) Bytes() []byte {
	ak := jubjub.EncodePoint(&pak.Ak)
	nsk := jubjub.EncodeScalar(pak.Nsk)
	return concat(ak[:], nsk[:])
}

// ParseProofAuthorizingKey decodes ak || nsk.
func ParseProofAuthorizingKey(b []byte) (*ProofAuthorizingKey, error) {
	if len(b) != ProofAuthorizingKeySize {
		return nil, saplingerr.New(saplingerr.InvalidInput, "keys.ParseProofAuthorizingKey",
			"expected %d bytes, got %d", ProofAuthorizingKeySize, len(b))
	}
	ak, err := jubjub.DecodePoint(b[:32])
	if err != nil {
		return nil, err
	}
	nsk, err := jubjub.DecodeScalar(b[32:])
	if err != nil {
		return nil, err
	}
	return &ProofAuthorizingKey{Ak: ak, Nsk: nsk}, nil
}

// Bytes encodes xsk as depth || tag || index || chain code || ask || nsk || ovk || dk.
func (xsk *ExtendedSpendingKey) Bytes() []byte {
	ask := jubjub.EncodeScalar(xsk.Expsk.Ask)
	nsk := jubjub.EncodeScalar(xsk.Expsk.Nsk)
	return concat([]byte{xsk.Depth}, xsk.ParentTag[:], indexBytes(xsk.ChildIndex), xsk.ChainCode[:],
		ask[:], nsk[:], xsk.Expsk.Ovk[:], xsk.Dk[:])
}

// ParseExtendedSpendingKey decodes the output of Bytes.
func ParseExtendedSpendingKey(b []byte) (*ExtendedSpendingKey, error) {
	if len(b) != ExtendedKeySize {
		return nil, saplingerr.New(saplingerr.InvalidInput, "keys.ParseExtendedSpendingKey",
			"expected %d bytes, got %d", ExtendedKeySize, len(b))
	}
	xsk := &ExtendedSpendingKey{Depth: b[0]}
	copy(xsk.ParentTag[:], b[1:5])
	xsk.ChildIndex = ChildIndex(binary.LittleEndian.Uint32(b[5:9]))
	copy(xsk.ChainCode[:], b[9:41])
	ask, err := jubjub.DecodeScalar(b[41:73])
	if err != nil {
		return nil, err
	}
	nsk, err := jubjub.DecodeScalar(b[73:105])
	if err != nil {
		return nil, err
	}
	xsk.Expsk.Ask, xsk.Expsk.Nsk = ask, nsk
	copy(xsk.Expsk.Ovk[:], b[105:137])
	copy(xsk.Dk[:], b[137:169])
	return xsk, nil
}

// Bytes encodes xfvk as depth || tag || index || chain code || ak || nk || ovk || dk.
func (xfvk *ExtendedFullViewingKey) Bytes() []byte {
	ak := jubjub.EncodePoint(&xfvk.Fvk.Ak)
	nk := jubjub.EncodePoint(&xfvk.Fvk.Nk)
	return concat([]byte{xfvk.Depth}, xfvk.ParentTag[:], indexBytes(xfvk.ChildIndex), xfvk.ChainCode[:],
		ak[:], nk[:], xfvk.Fvk.Ovk[:], xfvk.Dk[:])
}

// ParseExtendedFullViewingKey decodes the output of Bytes.
func ParseExtendedFullViewingKey(b []byte) (*ExtendedFullViewingKey, error) {
	if len(b) != ExtendedKeySize {
		return nil, saplingerr.New(saplingerr.InvalidInput, "keys.ParseExtendedFullViewingKey",
			"expected %d bytes, got %d", ExtendedKeySize, len(b))
	}
	xfvk := &ExtendedFullViewingKey{Depth: b[0]}
	copy(xfvk.ParentTag[:], b[1:5])
	xfvk.ChildIndex = ChildIndex(binary.LittleEndian.Uint32(b[5:9]))
	copy(xfvk.ChainCode[:], b[9:41])
	ak, err := jubjub.DecodePoint(b[41:73])
	if err != nil {
		return nil, err
	}
	nk, err := jubjub.DecodePoint(b[73:105])
	if err != nil {
		return nil, err
	}
	xfvk.Fvk.Ak, xfvk.Fvk.Nk = ak, nk
	copy(xfvk.Fvk.Ovk[:], b[105:137])
	copy(xfvk.Dk[:], b[137:169])
	return xfvk, nil
}

// ParseOutgoingViewingKey checks the length of a raw ovk.
func ParseOutgoingViewingKey(b []byte) (OutgoingViewingKey, error) {
	var ovk OutgoingViewingKey
	if len(b) != OutgoingViewingKeySize {
		return ovk, saplingerr.New(saplingerr.InvalidInput, "keys.ParseOutgoingViewingKey",
			"expected %d bytes, got %d", OutgoingViewingKeySize, len(b))
	}
	copy(ovk[:], b)
	return ovk, nil
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
