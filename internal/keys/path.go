// path.go - Derivation path parsing ("m/32'/133'/0'").

package keys

import (
	"strconv"
	"strings"

	"saplingcore/internal/saplingerr"
)

// HardenedOffset marks a hardened child index.
const HardenedOffset uint32 = 1 << 31

// ChildIndex is a single derivation step.
type ChildIndex uint32

// Hardened returns the hardened child index i.
func Hardened(i uint32) ChildIndex { return ChildIndex(i | HardenedOffset) }

// IsHardened reports whether the index selects hardened derivation.
func (c ChildIndex) IsHardened() bool { return uint32(c)&HardenedOffset != 0 }

func (c ChildIndex) String() string {
	if c.IsHardened() {
		return strconv.FormatUint(uint64(uint32(c)&^HardenedOffset), 10) + "'"
	}
	return strconv.FormatUint(uint64(c), 10)
}

// ParsePath parses a path of the form m/a/b'/c... into child indices.
// Each segment is a decimal below 2^31, optionally followed by ', h or H.
func ParsePath(path string) ([]ChildIndex, error) {
	const op = "keys.ParsePath"
	segments := strings.Split(path, "/")
	if segments[0] != "m" {
		return nil, saplingerr.New(saplingerr.InvalidDerivationPath, op, "path %q must start with m", path)
	}
	out := make([]ChildIndex, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		hardened := false
		if n := len(seg); n > 0 && (seg[n-1] == '\'' || seg[n-1] == 'h' || seg[n-1] == 'H') {
			hardened = true
			seg = seg[:n-1]
		}
		if seg == "" || seg[0] == '+' || seg[0] == '-' {
			return nil, saplingerr.New(saplingerr.InvalidDerivationPath, op, "empty or signed segment in %q", path)
		}
		v, err := strconv.ParseUint(seg, 10, 31)
		if err != nil {
			return nil, saplingerr.Wrap(saplingerr.InvalidDerivationPath, op, err)
		}
		if hardened {
			out = append(out, Hardened(uint32(v)))
		} else {
			out = append(out, ChildIndex(v))
		}
	}
	return out, nil
}

// FormatPath is the inverse of ParsePath.
func FormatPath(path []ChildIndex) string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range path {
		b.WriteByte('/')
		b.WriteString(c.String())
	}
	return b.String()
}
