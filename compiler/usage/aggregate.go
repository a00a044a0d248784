package usage

import (
	"context"
	"slices"
	"strings"

	"github.com/syssam/navgen/compiler/chain"
	"github.com/syssam/navgen/compiler/diag"
)

// DefaultMaxDepth bounds the length of aggregated paths.
const DefaultMaxDepth = 2

// Schema is the entity metadata the aggregator validates paths against.
type Schema interface {
	// Names returns every entity name.
	Names() []string
	// Relationships returns the relationship names of entity in declaration order.
	Relationships(entity string) []string
	// Target returns the entity reached through relationship on entity.
	Target(entity, relationship string) (string, bool)
}

type aggregateOptions struct {
	maxDepth int
}

// AggregateOption configures Aggregate.
type AggregateOption func(*aggregateOptions)

// WithMaxDepth sets the maximum path length. Values below 1 are raised to 1.
func WithMaxDepth(n int) AggregateOption {
	return func(o *aggregateOptions) {
		o.maxDepth = max(n, 1)
	}
}

// Aggregate merges discovered usages into a Set covering every entity of
// schema. Segments are resolved against the relationships declared on the
// entity at their position; a segment naming several relationships at once,
// as composite shortcut traversals do, is split greedily. Paths longer than
// the maximum depth are truncated. Each chain reports a truncation point
// once, however many of its branches run past it.
//
// The only error returned is ctx's.
func Aggregate(ctx context.Context, schema Schema, usages []chain.Usage, opts ...AggregateOption) (*Set, diag.List, error) {
	o := aggregateOptions{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	known := make(map[string]bool)
	for _, n := range schema.Names() {
		known[n] = true
	}
	var ds diag.List
	builders := make(map[string]*TreeBuilder)
	truncated := make(map[depthKey]bool)
	for _, u := range usages {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !known[u.Entity] {
			ds.Add(diag.Newf(diag.UnresolvedRelationship, diag.Warning, u.Pos,
				"navigation chain starts at unknown entity %q", u.Entity).WithEntity(u.Entity))
			continue
		}
		segs, at, failed := resolve(schema, u.Entity, u.Path)
		if failed != "" {
			ds.Add(diag.Newf(diag.UnresolvedRelationship, diag.Warning, u.Pos,
				"relationship %q is not declared on %s", failed, at).WithEntity(u.Entity))
		}
		if len(segs) == 0 {
			continue
		}
		if len(segs) > o.maxDepth {
			cut := strings.Join(segs[:o.maxDepth], Separator)
			k := depthKey{entity: u.Entity, chain: u.Chain, path: cut}
			if !k.chain.IsValid() {
				k.chain = u.Pos
			}
			if !truncated[k] {
				truncated[k] = true
				ds.Add(diag.Newf(diag.DepthExceeded, diag.Warning, u.Pos,
					"path %s of %s exceeds the maximum depth %d; truncated to %s",
					strings.Join(segs, Separator), u.Entity, o.maxDepth, cut).WithEntity(u.Entity))
			}
			segs = segs[:o.maxDepth]
		}
		b, ok := builders[u.Entity]
		if !ok {
			b = NewTreeBuilder()
			builders[u.Entity] = b
		}
		b.Insert(Path{key: strings.Join(segs, Separator)})
	}

	entities := make([]Entity, 0, len(known))
	for _, name := range schema.Names() {
		b, ok := builders[name]
		if !ok {
			entities = append(entities, NoUsage(name))
			continue
		}
		entities = append(entities, Observed(name, b.Build(DeclarationOrder(schema, name))))
	}
	ds.Sort()
	return NewSet(entities...), ds, nil
}

// depthKey identifies one truncation point of one chain.
type depthKey struct {
	entity string
	chain  diag.Position
	path   string
}

// DeclarationOrder sorts tree children by the declaration order of the
// relationships of the entity reached at the parent path.
func DeclarationOrder(schema Schema, root string) Order {
	return func(parent Path, children []string) {
		entity := root
		for _, seg := range parent.Segments() {
			t, ok := schema.Target(entity, seg)
			if !ok {
				slices.Sort(children)
				return
			}
			entity = t
		}
		rels := schema.Relationships(entity)
		slices.SortStableFunc(children, func(a, b string) int {
			return slices.Index(rels, a) - slices.Index(rels, b)
		})
	}
}

// resolve maps raw segments onto declared relationships. It returns the
// resolved prefix and, when a segment fails, the entity and segment where
// resolution stopped.
func resolve(schema Schema, entity string, raw []string) (out []string, at, failed string) {
	cur := entity
	for _, seg := range raw {
		if t, ok := schema.Target(cur, seg); ok {
			out = append(out, seg)
			cur = t
			continue
		}
		split, end, ok := splitConcat(schema, cur, seg)
		if !ok {
			return out, cur, seg
		}
		out = append(out, split...)
		cur = end
	}
	return out, "", ""
}

// splitConcat splits seg into relationship names declared along a path
// from entity, preferring the longest leading name.
func splitConcat(schema Schema, entity, seg string) ([]string, string, bool) {
	rels := slices.Clone(schema.Relationships(entity))
	slices.SortStableFunc(rels, func(a, b string) int { return len(b) - len(a) })
	for _, r := range rels {
		if len(r) >= len(seg) || !strings.HasPrefix(seg, r) {
			continue
		}
		t, _ := schema.Target(entity, r)
		rest := seg[len(r):]
		if end, ok := schema.Target(t, rest); ok {
			return []string{r, rest}, end, true
		}
		if more, end, ok := splitConcat(schema, t, rest); ok {
			return append([]string{r}, more...), end, true
		}
	}
	return nil, "", false
}
