// ledger.go - In-memory public ledger of note commitments and nullifiers.
//
// The Ledger records the commitment tree, every anchor it has had and every
// revealed nullifier. It holds public data only and can be persisted as JSON.
//
// NOTE: Ledger methods are safe for concurrent use.

// Package ledger tracks the public state spends are checked against.
package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/merkle"
	"saplingcore/internal/prover"
	"saplingcore/internal/verifier"
)

var (
	// ErrDoubleSpend is returned when a nullifier has already been revealed.
	ErrDoubleSpend = errors.New("double-spend detected: nullifier already in ledger")
	// ErrUnknownAnchor is returned when a spend proves against a root the
	// tree never had.
	ErrUnknownAnchor = errors.New("spend anchor is not a known tree root")
	// ErrTreeFull is returned when appending would exceed the tree.
	ErrTreeFull = errors.New("note commitment tree is full")
)

type key = [32]byte

// Ledger is the append-only public state.
type Ledger struct {
	mu         sync.RWMutex
	tree       *merkle.Tree
	nullifiers map[key]struct{}
	anchors    map[key]struct{}
	capacity   uint64
}

// New returns an empty ledger whose only anchor is the empty root.
func New() *Ledger {
	l := &Ledger{
		tree:       merkle.NewTree(),
		nullifiers: make(map[key]struct{}),
		anchors:    make(map[key]struct{}),
		capacity:   merkle.MaxLeaves,
	}
	l.recordAnchor()
	return l
}

func (l *Ledger) recordAnchor() {
	root := l.tree.Root()
	l.anchors[jubjub.EncodeElement(&root)] = struct{}{}
}

// AppendCommitment adds one note commitment and returns its position.
func (l *Ledger) AppendCommitment(cmu fr.Element) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkRoom(1); err != nil {
		return 0, err
	}
	pos, err := l.tree.Append(cmu)
	if err != nil {
		return 0, err
	}
	l.recordAnchor()
	return pos, nil
}

// AppendOutputs adds the commitments of outputs in order and returns their
// positions.
func (l *Ledger) AppendOutputs(outputs ...*prover.OutputDescription) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendOutputs(outputs)
}

// checkRoom fails with ErrTreeFull unless n more leaves fit.
func (l *Ledger) checkRoom(n int) error {
	if size := l.tree.Size(); uint64(n) > l.capacity-size {
		return fmt.Errorf("%d leaves after %d: %w", n, size, ErrTreeFull)
	}
	return nil
}

// appendOutputs appends all of outputs or none of them.
func (l *Ledger) appendOutputs(outputs []*prover.OutputDescription) ([]uint64, error) {
	if err := l.checkRoom(len(outputs)); err != nil {
		return nil, err
	}
	positions := make([]uint64, 0, len(outputs))
	for _, o := range outputs {
		pos, err := l.tree.Append(o.Cmu)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	l.recordAnchor()
	return positions, nil
}

// ApplyBundle verifies b and, if it is valid, reveals its nullifiers and
// appends its outputs.
// Steps:
//  1. Every spend must prove against a known anchor
//  2. No nullifier may repeat, within the bundle or against the ledger
//  3. The outputs must fit in the tree
//  4. The bundle must verify
//  5. Append outputs, then record nullifiers
func (l *Ledger) ApplyBundle(ctx context.Context, b *verifier.Bundle, sighash [32]byte) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[key]struct{}, len(b.Spends))
	for i, s := range b.Spends {
		if _, ok := l.anchors[jubjub.EncodeElement(&s.Anchor)]; !ok {
			return nil, fmt.Errorf("spend %d: %w", i, ErrUnknownAnchor)
		}
		nf := s.NullifierBytes()
		if _, ok := l.nullifiers[nf]; ok {
			return nil, fmt.Errorf("spend %d: %w", i, ErrDoubleSpend)
		}
		if _, ok := seen[nf]; ok {
			return nil, fmt.Errorf("spend %d repeats a nullifier in the bundle: %w", i, ErrDoubleSpend)
		}
		seen[nf] = struct{}{}
	}

	if err := l.checkRoom(len(b.Outputs)); err != nil {
		return nil, err
	}

	if err := verifier.VerifyBundle(ctx, b, sighash); err != nil {
		return nil, err
	}

	positions, err := l.appendOutputs(b.Outputs)
	if err != nil {
		return nil, err
	}
	for nf := range seen {
		l.nullifiers[nf] = struct{}{}
	}
	return positions, nil
}

// HasNullifier reports whether nf has been revealed.
func (l *Ledger) HasNullifier(nf [32]byte) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.nullifiers[nf]
	return ok
}

// HasCommitment reports whether cmu is in the tree.
func (l *Ledger) HasCommitment(cmu fr.Element) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Contains(&cmu)
}

// IsKnownAnchor reports whether root was ever the tree root.
func (l *Ledger) IsKnownAnchor(root fr.Element) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.anchors[jubjub.EncodeElement(&root)]
	return ok
}

// Root returns the current anchor.
func (l *Ledger) Root() fr.Element {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Root()
}

// Size returns the number of commitments.
func (l *Ledger) Size() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Size()
}

// Witness returns the authentication path of the commitment at position
// against the current root.
func (l *Ledger) Witness(position uint64) (*merkle.Path, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Witness(position)
}

// snapshot is the JSON form of a ledger. Values are hex of their 32-byte
// little-endian encodings.
type snapshot struct {
	Commitments []string `json:"commitments"`
	Nullifiers  []string `json:"nullifiers"`
	Anchors     []string `json:"anchors"`
}

// SaveToFile writes the ledger as JSON, overwriting path.
func (l *Ledger) SaveToFile(path string) (err error) {
	l.mu.RLock()
	snap := snapshot{
		Commitments: make([]string, 0, l.tree.Size()),
		Nullifiers:  make([]string, 0, len(l.nullifiers)),
		Anchors:     make([]string, 0, len(l.anchors)),
	}
	for _, cm := range l.tree.Leaves() {
		b := jubjub.EncodeElement(&cm)
		snap.Commitments = append(snap.Commitments, hex.EncodeToString(b[:]))
	}
	for nf := range l.nullifiers {
		snap.Nullifiers = append(snap.Nullifiers, hex.EncodeToString(nf[:]))
	}
	for a := range l.anchors {
		snap.Anchors = append(snap.Anchors, hex.EncodeToString(a[:]))
	}
	l.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing ledger file: %w", cerr)
		}
	}()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(&snap)
}

// LoadFromFile rebuilds a ledger saved by SaveToFile.
func LoadFromFile(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding ledger: %w", err)
	}

	l := New()
	for i, s := range snap.Commitments {
		b, err := decodeHex32(s)
		if err != nil {
			return nil, fmt.Errorf("commitment %d: %w", i, err)
		}
		cm, err := jubjub.DecodeElement(b[:])
		if err != nil {
			return nil, fmt.Errorf("commitment %d: %w", i, err)
		}
		if _, err := l.tree.Append(cm); err != nil {
			return nil, err
		}
	}
	for i, s := range snap.Nullifiers {
		nf, err := decodeHex32(s)
		if err != nil {
			return nil, fmt.Errorf("nullifier %d: %w", i, err)
		}
		l.nullifiers[nf] = struct{}{}
	}
	for i, s := range snap.Anchors {
		a, err := decodeHex32(s)
		if err != nil {
			return nil, fmt.Errorf("anchor %d: %w", i, err)
		}
		l.anchors[a] = struct{}{}
	}
	// every root a saved ledger had, including the last, was recorded
	if len(snap.Anchors) > 0 {
		root := l.tree.Root()
		if _, ok := l.anchors[jubjub.EncodeElement(&root)]; !ok {
			return nil, errors.New("decoding ledger: commitments do not match any recorded anchor")
		}
	}
	l.recordAnchor()
	return l, nil
}

func decodeHex32(s string) (key, error) {
	var out key
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}
