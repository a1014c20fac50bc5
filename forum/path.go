// forum/path.go
package forum

// Path is the materialized ancestor chain of a post: the ids from its
// top-level ancestor down to and including the post itself. It is
// stored as BIGINT[] so the database can order and range-filter posts
// without recursive traversal.
//
// The total order is element-wise comparison with the rule that a
// strict prefix sorts before its extensions, so ascending Path order
// is exactly a depth-first pre-order walk of the reply tree, and
// "descendant of" is exactly "has prefix".
type Path []int64

// Extend returns a new Path for a reply with the given id. The
// receiver may be nil, which produces the path of a top-level post.
func (p Path) Extend(id int64) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p...)
	return append(out, id)
}

// Compare returns -1, 0 or 1. An ancestor sorts before any of its
// descendants.
func (p Path) Compare(other Path) int {
	n := len(p)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		switch {
		case p[i] < other[i]:
			return -1
		case p[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(other):
		return -1
	case len(p) > len(other):
		return 1
	}
	return 0
}

// HasPrefix reports whether ancestor is a (non-strict) prefix of p,
// i.e. whether p belongs to the subtree rooted at ancestor.
func (p Path) HasPrefix(ancestor Path) bool {
	if len(ancestor) > len(p) {
		return false
	}
	for i, id := range ancestor {
		if p[i] != id {
			return false
		}
	}
	return true
}

// Root returns the id of the top-level ancestor, or 0 for an empty
// path.
func (p Path) Root() int64 {
	if len(p) == 0 {
		return 0
	}
	return p[0]
}
