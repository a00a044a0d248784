package navgen

import "context"

// Projection pairs a generated mapping function with the relationships it
// reads. Generated code declares one Projection variable per companion type.
type Projection[E, R any] struct {
	// Name is the companion type name.
	Name string
	// Entity is the name of the mapped entity.
	Entity string
	// Include lists the relationships the mapping reads.
	Include Include
	// Map converts one entity. It returns nil for a nil entity.
	Map func(*E) *R
}

// Apply maps every entity in nodes, keeping nil results out.
func (p Projection[E, R]) Apply(nodes []*E) []*R {
	out := make([]*R, 0, len(nodes))
	for _, n := range nodes {
		if r := p.Map(n); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Load loads entities from src with the relationships the projection reads
// and maps them.
func (p Projection[E, R]) Load(ctx context.Context, src Source[E]) ([]*R, error) {
	nodes, err := All(ctx, src, p.Include, p.Entity)
	if err != nil {
		return nil, err
	}
	return p.Apply(nodes), nil
}

// Check verifies that i provides every relationship the projection reads.
// A chained builder accumulates every relationship it was given, so pass the
// builder itself; one generated Descriptor guarantees a single edge and only
// covers projections reading one relationship.
func (p Projection[E, R]) Check(i Includer) error {
	got := i.Include()
	for _, path := range p.Include.Paths() {
		if !got.Has(splitPath(path)...) {
			return NewNotLoadedError(p.Entity, path)
		}
	}
	return nil
}
