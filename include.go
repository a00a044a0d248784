package navgen

import (
	"fmt"
	"slices"
	"strings"
)

// PathSeparator separates relationship names in a textual path.
const PathSeparator = "/"

// Include is an immutable tree of relationships to load alongside an entity.
//
// Every method returns a new value; an Include is never modified in place,
// so builders can share it freely. Children are kept sorted by name, which
// makes the result of With independent of call order.
type Include struct {
	edges []includeEdge
}

// Includer is implemented by generated navigation builders. Nested
// traversal options return any Includer, so a capability builder can be
// returned from an option without converting it back.
type Includer interface {
	Include() Include
}

type includeEdge struct {
	name string
	sub  Include
}

// IncludeOf returns an Include holding the given single-segment relationships.
func IncludeOf(names ...string) Include {
	var inc Include
	for _, name := range names {
		inc = inc.With(name, Include{})
	}
	return inc
}

// ParseInclude builds an Include from slash separated paths such as
// "Customer/ShippingAddress".
func ParseInclude(paths ...string) (Include, error) {
	var inc Include
	for _, p := range paths {
		segs := strings.Split(p, PathSeparator)
		for _, s := range segs {
			if s == "" {
				return Include{}, fmt.Errorf("navgen: invalid include path %q", p)
			}
		}
		inc = inc.WithPath(segs...)
	}
	return inc, nil
}

// MustInclude is like ParseInclude but panics on malformed paths.
// Generated code uses it with constant input.
func MustInclude(paths ...string) Include {
	inc, err := ParseInclude(paths...)
	if err != nil {
		panic(err)
	}
	return inc
}

// With returns a copy of i that also includes the relationship name, merging
// sub into any sub-include already recorded for it.
func (i Include) With(name string, sub Include) Include {
	idx, found := slices.BinarySearchFunc(i.edges, name, func(e includeEdge, n string) int {
		return strings.Compare(e.name, n)
	})
	edges := make([]includeEdge, 0, len(i.edges)+1)
	edges = append(edges, i.edges[:idx]...)
	if found {
		edges = append(edges, includeEdge{name: name, sub: i.edges[idx].sub.Merge(sub)})
		edges = append(edges, i.edges[idx+1:]...)
	} else {
		edges = append(edges, includeEdge{name: name, sub: sub})
		edges = append(edges, i.edges[idx:]...)
	}
	return Include{edges: edges}
}

// Include returns i, so that an Include is itself an Includer.
func (i Include) Include() Include { return i }

// WithPath returns a copy of i that includes the nested path segs.
func (i Include) WithPath(segs ...string) Include {
	if len(segs) == 0 {
		return i
	}
	return i.With(segs[0], Include{}.WithPath(segs[1:]...))
}

// Merge returns the union of i and o.
func (i Include) Merge(o Include) Include {
	out := i
	for _, e := range o.edges {
		out = out.With(e.name, e.sub)
	}
	return out
}

// Empty reports whether nothing is included.
func (i Include) Empty() bool {
	return len(i.edges) == 0
}

// Names returns the directly included relationship names in sorted order.
func (i Include) Names() []string {
	names := make([]string, len(i.edges))
	for j, e := range i.edges {
		names[j] = e.name
	}
	return names
}

// Sub returns the sub-include recorded for the relationship name.
func (i Include) Sub(name string) (Include, bool) {
	for _, e := range i.edges {
		if e.name == name {
			return e.sub, true
		}
	}
	return Include{}, false
}

// Has reports whether the nested path is included.
func (i Include) Has(path ...string) bool {
	cur := i
	for _, name := range path {
		sub, ok := cur.Sub(name)
		if !ok {
			return false
		}
		cur = sub
	}
	return true
}

// Paths returns every leaf path in slash separated form.
func (i Include) Paths() []string {
	var out []string
	for _, e := range i.edges {
		if e.sub.Empty() {
			out = append(out, e.name)
			continue
		}
		for _, p := range e.sub.Paths() {
			out = append(out, e.name+PathSeparator+p)
		}
	}
	return out
}

// Equal reports whether i and o include the same relationships.
func (i Include) Equal(o Include) bool {
	if len(i.edges) != len(o.edges) {
		return false
	}
	for j := range i.edges {
		if i.edges[j].name != o.edges[j].name || !i.edges[j].sub.Equal(o.edges[j].sub) {
			return false
		}
	}
	return true
}

// String renders the include as {A{B}, C}.
func (i Include) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for j, e := range i.edges {
		if j > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.name)
		if !e.sub.Empty() {
			sb.WriteString(e.sub.String())
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
