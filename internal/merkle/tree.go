// tree.go - Incremental append-only note commitment tree.
//
// NOTE: Tree is not safe for concurrent use.

package merkle

import (
	"saplingcore/internal/saplingerr"
)

// MaxLeaves is the capacity of the tree.
const MaxLeaves = uint64(1) << Depth

// Tree keeps every filled node so that roots and witnesses for any appended
// leaf can be produced without rehashing the whole tree.
type Tree struct {
	levels [Depth + 1][]Node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Size is the number of appended leaves.
func (t *Tree) Size() uint64 {
	return uint64(len(t.levels[0]))
}

// Append adds a leaf and returns its position.
func (t *Tree) Append(leaf Node) (uint64, error) {
	pos := t.Size()
	if pos >= MaxLeaves {
		return 0, saplingerr.New(saplingerr.InvalidInput, "merkle.Tree.Append", "tree is full")
	}
	t.levels[0] = append(t.levels[0], leaf)
	idx := pos
	for i := 0; i < Depth; i++ {
		parent := idx >> 1
		left := t.levels[i][parent*2]
		right := mustEmptyRoot(i)
		if parent*2+1 < uint64(len(t.levels[i])) {
			right = t.levels[i][parent*2+1]
		}
		node := hash(i, &left, &right)
		if parent < uint64(len(t.levels[i+1])) {
			t.levels[i+1][parent] = node
		} else {
			t.levels[i+1] = append(t.levels[i+1], node)
		}
		idx = parent
	}
	return pos, nil
}

// Root returns the current anchor.
func (t *Tree) Root() Node {
	if t.Size() == 0 {
		return mustEmptyRoot(Depth)
	}
	return t.levels[Depth][0]
}

// Witness returns the authentication path of the leaf at position.
func (t *Tree) Witness(position uint64) (*Path, error) {
	if position >= t.Size() {
		return nil, saplingerr.New(saplingerr.InvalidInput, "merkle.Tree.Witness", "position %d not in tree of size %d", position, t.Size())
	}
	p := &Path{Position: position}
	idx := position
	for i := 0; i < Depth; i++ {
		sib := idx ^ 1
		if sib < uint64(len(t.levels[i])) {
			p.Siblings[i] = t.levels[i][sib]
		} else {
			p.Siblings[i] = mustEmptyRoot(i)
		}
		idx >>= 1
	}
	return p, nil
}

// Leaves returns a copy of the appended leaves in order.
func (t *Tree) Leaves() []Node {
	out := make([]Node, len(t.levels[0]))
	copy(out, t.levels[0])
	return out
}

// Contains reports whether leaf has been appended.
func (t *Tree) Contains(leaf *Node) bool {
	for i := range t.levels[0] {
		if t.levels[0][i].Equal(leaf) {
			return true
		}
	}
	return false
}
