package aether

import (
	"encoding/json"
	"strings"
)

// Path addresses a node in the tree. The empty path addresses the root.
type Path []string

// ParsePath parses the dotted form produced by String.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// String joins the segments with ".". It is also the default render task key
// of the node at the path.
func (p Path) String() string { return strings.Join(p, ".") }

// Key returns the last segment, or "" for the root.
func (p Path) Key() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the path without its last segment. The parent of the root is
// the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[: len(p)-1 : len(p)-1]
}

// IsRoot reports whether p is the empty path.
func (p Path) IsRoot() bool { return len(p) == 0 }

// IsAncestorOf reports whether p is a proper prefix of q.
func (p Path) IsAncestorOf(q Path) bool {
	if len(p) >= len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Equal reports whether p and q have the same segments.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Append returns a new path with segs appended. p is not modified.
func (p Path) Append(segs ...string) Path {
	q := make(Path, 0, len(p)+len(segs))
	return append(append(q, p...), segs...)
}

// MarshalJSON encodes the root as an empty array rather than null.
func (p Path) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(p))
}

// Segments may contain ".", so the index uses a separator that never appears
// in practice.
func (p Path) indexKey() string { return strings.Join(p, "\x1f") }
