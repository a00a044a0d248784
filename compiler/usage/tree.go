package usage

import (
	"slices"
	"strings"

	"github.com/zeebo/xxh3"
)

// Tree is the merged set of paths observed for one entity. The root is
// implicit; every node is identified by the path leading to it, and every
// prefix of an inserted path is a node.
//
// A Tree is immutable once built. The zero Tree is empty.
type Tree struct {
	// nodes lists every node path in pre-order.
	nodes []Path
	index map[Path]int
	kids  map[Path][]string
}

// Order sorts the children of parent in place. A nil Order sorts lexically.
type Order func(parent Path, children []string)

// TreeBuilder accumulates paths into a Tree. It is not safe for concurrent use.
type TreeBuilder struct {
	kids map[Path][]string
	seen map[Path]bool
}

// NewTreeBuilder returns an empty builder.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{kids: make(map[Path][]string), seen: make(map[Path]bool)}
}

// Insert adds p and all of its prefixes. It reports whether p was new.
func (b *TreeBuilder) Insert(p Path) bool {
	if p.IsZero() || b.seen[p] {
		return false
	}
	var cur Path
	for _, seg := range p.Segments() {
		next := cur.Append(seg)
		if !b.seen[next] {
			b.seen[next] = true
			b.kids[cur] = append(b.kids[cur], seg)
		}
		cur = next
	}
	return true
}

// Len returns the number of nodes inserted so far.
func (b *TreeBuilder) Len() int {
	return len(b.seen)
}

// Build returns the Tree. The builder may keep being used afterwards.
func (b *TreeBuilder) Build(order Order) Tree {
	if len(b.seen) == 0 {
		return Tree{}
	}
	t := Tree{index: make(map[Path]int, len(b.seen)), kids: make(map[Path][]string, len(b.kids))}
	for parent, kids := range b.kids {
		sorted := slices.Clone(kids)
		if order != nil {
			order(parent, sorted)
		} else {
			slices.Sort(sorted)
		}
		t.kids[parent] = sorted
	}
	var walk func(Path)
	walk = func(p Path) {
		for _, k := range t.kids[p] {
			child := p.Append(k)
			t.index[child] = len(t.nodes)
			t.nodes = append(t.nodes, child)
			walk(child)
		}
	}
	walk(Path{})
	return t
}

// TreeOf builds a lexically ordered tree from paths.
func TreeOf(paths ...Path) Tree {
	b := NewTreeBuilder()
	for _, p := range paths {
		b.Insert(p)
	}
	return b.Build(nil)
}

// Empty reports whether the tree has no nodes.
func (t Tree) Empty() bool {
	return len(t.nodes) == 0
}

// Len returns the number of nodes.
func (t Tree) Len() int {
	return len(t.nodes)
}

// Has reports whether p is a node of the tree.
func (t Tree) Has(p Path) bool {
	_, ok := t.index[p]
	return ok
}

// Children returns the child names of p. The zero Path denotes the root.
func (t Tree) Children(p Path) []string {
	return slices.Clone(t.kids[p])
}

// Paths returns every node path in pre-order.
func (t Tree) Paths() []Path {
	return slices.Clone(t.nodes)
}

// Leaves returns the paths of nodes without children, in pre-order.
func (t Tree) Leaves() []Path {
	var out []Path
	for _, p := range t.nodes {
		if len(t.kids[p]) == 0 {
			out = append(out, p)
		}
	}
	return out
}

// Depth returns the length of the longest path.
func (t Tree) Depth() int {
	d := 0
	for _, p := range t.nodes {
		d = max(d, p.Len())
	}
	return d
}

// Equal reports whether t and o contain the same nodes, regardless of child order.
func (t Tree) Equal(o Tree) bool {
	if len(t.nodes) != len(o.nodes) {
		return false
	}
	for _, p := range t.nodes {
		if !o.Has(p) {
			return false
		}
	}
	return true
}

// Hash returns a hash over the node set, independent of child order.
func (t Tree) Hash() uint64 {
	keys := make([]string, len(t.nodes))
	for i, p := range t.nodes {
		keys[i] = p.Key()
	}
	slices.Sort(keys)
	return xxh3.HashString(strings.Join(keys, "\n"))
}

// String lists the node paths separated by commas.
func (t Tree) String() string {
	keys := make([]string, len(t.nodes))
	for i, p := range t.nodes {
		keys[i] = p.Key()
	}
	return "[" + strings.Join(keys, ", ") + "]"
}
