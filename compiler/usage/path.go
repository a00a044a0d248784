// Package usage models the relationship paths calling code navigates.
//
// A Path is an ordered list of relationship names, a Tree merges the paths
// observed for one entity, and a Set maps every entity to either
// NoUsageObserved or UsageObserved with its Tree. All three are immutable.
package usage

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/zeebo/xxh3"
)

// Separator joins the segments of a Path in its canonical form.
const Separator = "/"

// Path is a non-empty sequence of relationship names. The zero Path is empty
// and only valid as the root of a Tree.
//
// Path is comparable: two paths with the same segments are ==, so a Path can
// be used directly as a map key.
type Path struct {
	key string
}

// NewPath returns the path made of segs. Every segment must be a Go identifier.
func NewPath(segs ...string) (Path, error) {
	if len(segs) == 0 {
		return Path{}, fmt.Errorf("usage: empty relationship path")
	}
	for _, s := range segs {
		if !token.IsIdentifier(s) {
			return Path{}, fmt.Errorf("usage: invalid relationship name %q", s)
		}
	}
	return Path{key: strings.Join(segs, Separator)}, nil
}

// MustPath is like NewPath but panics on invalid input.
func MustPath(segs ...string) Path {
	p, err := NewPath(segs...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePath parses the canonical form produced by String.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("usage: empty relationship path")
	}
	return NewPath(strings.Split(s, Separator)...)
}

// IsZero reports whether p is the empty path.
func (p Path) IsZero() bool {
	return p.key == ""
}

// Segments returns a copy of the relationship names.
func (p Path) Segments() []string {
	if p.key == "" {
		return nil
	}
	return strings.Split(p.key, Separator)
}

// Len returns the number of segments.
func (p Path) Len() int {
	if p.key == "" {
		return 0
	}
	return strings.Count(p.key, Separator) + 1
}

// Head returns the first segment.
func (p Path) Head() string {
	head, _, _ := strings.Cut(p.key, Separator)
	return head
}

// Tail returns p without its first segment.
func (p Path) Tail() Path {
	_, tail, _ := strings.Cut(p.key, Separator)
	return Path{key: tail}
}

// Last returns the final segment.
func (p Path) Last() string {
	return p.key[strings.LastIndex(p.key, Separator)+1:]
}

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	i := strings.LastIndex(p.key, Separator)
	if i < 0 {
		return Path{}
	}
	return Path{key: p.key[:i]}
}

// Append returns p extended by seg.
func (p Path) Append(seg string) Path {
	if p.key == "" {
		return Path{key: seg}
	}
	return Path{key: p.key + Separator + seg}
}

// Truncate returns the first n segments of p.
func (p Path) Truncate(n int) Path {
	if n <= 0 {
		return Path{}
	}
	segs := p.Segments()
	if n >= len(segs) {
		return p
	}
	return Path{key: strings.Join(segs[:n], Separator)}
}

// HasPrefix reports whether q is a prefix of p, segment-wise.
func (p Path) HasPrefix(q Path) bool {
	if q.key == "" {
		return true
	}
	return p.key == q.key || strings.HasPrefix(p.key, q.key+Separator)
}

// Equal reports whether p and q have the same segments.
func (p Path) Equal(q Path) bool {
	return p.key == q.key
}

// Key returns the canonical form, usable as a map key.
func (p Path) Key() string {
	return p.key
}

// String returns the canonical form, e.g. "Customer/ShippingAddress".
func (p Path) String() string {
	return p.key
}

// Hash returns a hash of the canonical form.
func (p Path) Hash() uint64 {
	return xxh3.HashString(p.key)
}

// Compare orders paths segment by segment, shorter prefixes first.
func (p Path) Compare(q Path) int {
	a, b := p.Segments(), q.Segments()
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}
