// merkle.go - Note commitment tree hashing, authentication paths and an
// incremental append-only tree.

// Package merkle implements the fixed-depth binary note commitment tree.
package merkle

import (
	"encoding/binary"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"saplingcore/internal/jubjub"
	"saplingcore/internal/saplingerr"
)

const (
	// Depth is the height of the note commitment tree.
	Depth = 32

	// NodeSize is the length of an encoded node.
	NodeSize = jubjub.ElementSize

	// PathSize is the encoded length of a Path:
	// depth byte, Depth * (length byte || node), 8-byte position.
	PathSize = 1 + Depth*(1+NodeSize) + 8
)

// Node is a tree node (or leaf) in the base field.
type Node = fr.Element

// Hash combines two children at the given depth (0 = just above the leaves).
// The depth is the first MiMC input, separating levels from each other.
func Hash(depth int, lhs, rhs *Node) (Node, error) {
	if depth < 0 || depth >= Depth {
		return Node{}, saplingerr.New(saplingerr.InvalidDepth, "merkle.Hash", "depth %d not in [0, %d)", depth, Depth)
	}
	return hash(depth, lhs, rhs), nil
}

func hash(depth int, lhs, rhs *Node) Node {
	var tag fr.Element
	tag.SetUint64(uint64(depth))
	return jubjub.HashElements(&tag, lhs, rhs)
}

// HashBytes is Hash over encoded nodes.
func HashBytes(depth int, lhs, rhs []byte) ([NodeSize]byte, error) {
	l, err := jubjub.DecodeElement(lhs)
	if err != nil {
		return [NodeSize]byte{}, err
	}
	r, err := jubjub.DecodeElement(rhs)
	if err != nil {
		return [NodeSize]byte{}, err
	}
	out, err := Hash(depth, &l, &r)
	if err != nil {
		return [NodeSize]byte{}, err
	}
	return jubjub.EncodeElement(&out), nil
}

var (
	emptyOnce  sync.Once
	emptyRoots [Depth + 1]Node
)

// EmptyLeaf is the value of an unused leaf.
func EmptyLeaf() Node {
	var one Node
	one.SetOne()
	return one
}

// EmptyRoot returns the root of an empty subtree of the given height.
func EmptyRoot(height int) (Node, error) {
	if height < 0 || height > Depth {
		return Node{}, saplingerr.New(saplingerr.InvalidDepth, "merkle.EmptyRoot", "height %d not in [0, %d]", height, Depth)
	}
	emptyOnce.Do(func() {
		emptyRoots[0] = EmptyLeaf()
		for i := 0; i < Depth; i++ {
			emptyRoots[i+1] = hash(i, &emptyRoots[i], &emptyRoots[i])
		}
	})
	return emptyRoots[height], nil
}

func mustEmptyRoot(height int) Node {
	n, _ := EmptyRoot(height)
	return n
}

// Path is the authentication path of one leaf.
type Path struct {
	Siblings [Depth]Node // ordered from the leaf level up
	Position uint64
}

// Root folds leaf up the path.
func (p *Path) Root(leaf *Node) Node {
	cur := *leaf
	for i := 0; i < Depth; i++ {
		if (p.Position>>i)&1 == 0 {
			cur = hash(i, &cur, &p.Siblings[i])
		} else {
			cur = hash(i, &p.Siblings[i], &cur)
		}
	}
	return cur
}

// Verify reports whether leaf sits at p.Position under anchor.
func (p *Path) Verify(leaf, anchor *Node) bool {
	root := p.Root(leaf)
	return root.Equal(anchor)
}

// Bytes encodes the path as 0x20 || 32 x (0x20 || sibling) || position_le.
func (p *Path) Bytes() []byte {
	out := make([]byte, 0, PathSize)
	out = append(out, Depth)
	for i := range p.Siblings {
		enc := jubjub.EncodeElement(&p.Siblings[i])
		out = append(out, NodeSize)
		out = append(out, enc[:]...)
	}
	return binary.LittleEndian.AppendUint64(out, p.Position)
}

// ParsePath decodes the output of Bytes. The position must fit the tree.
func ParsePath(b []byte) (*Path, error) {
	const op = "merkle.ParsePath"
	if len(b) != PathSize {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "expected %d bytes, got %d", PathSize, len(b))
	}
	if b[0] != Depth {
		return nil, saplingerr.New(saplingerr.InvalidDepth, op, "path depth %d, want %d", b[0], Depth)
	}
	p := &Path{}
	off := 1
	for i := 0; i < Depth; i++ {
		if b[off] != NodeSize {
			return nil, saplingerr.New(saplingerr.InvalidInput, op, "sibling %d has length prefix %d", i, b[off])
		}
		n, err := jubjub.DecodeElement(b[off+1 : off+1+NodeSize])
		if err != nil {
			return nil, err
		}
		p.Siblings[i] = n
		off += 1 + NodeSize
	}
	p.Position = binary.LittleEndian.Uint64(b[off:])
	if p.Position>>Depth != 0 {
		return nil, saplingerr.New(saplingerr.InvalidInput, op, "position %d outside the tree", p.Position)
	}
	return p, nil
}
