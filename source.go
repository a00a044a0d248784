package navgen

import "context"

// Source loads entities of type E together with the relationships in inc.
// Generated builders delegate every terminal to a Source; the storage layer
// behind it is the caller's concern.
type Source[E any] interface {
	Load(ctx context.Context, inc Include) ([]*E, error)
}

// The SourceFunc type is an adapter to allow the use of ordinary functions as Source.
type SourceFunc[E any] func(context.Context, Include) ([]*E, error)

// Load calls f(ctx, inc).
func (f SourceFunc[E]) Load(ctx context.Context, inc Include) ([]*E, error) {
	return f(ctx, inc)
}

// All loads every entity from src. label names the entity in errors.
func All[E any](ctx context.Context, src Source[E], inc Include, label string) ([]*E, error) {
	if src == nil {
		return nil, NewLoadError(label, "all", ErrNoSource)
	}
	nodes, err := src.Load(ctx, inc)
	if err != nil {
		return nil, NewLoadError(label, "all", err)
	}
	return nodes, nil
}

// First returns the first entity loaded from src, or a NotFoundError.
func First[E any](ctx context.Context, src Source[E], inc Include, label string) (*E, error) {
	nodes, err := All(ctx, src, inc, label)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, NewNotFoundError(label)
	}
	return nodes[0], nil
}

// Only returns the single entity loaded from src. Zero results yield a
// NotFoundError, several a NotSingularError.
func Only[E any](ctx context.Context, src Source[E], inc Include, label string) (*E, error) {
	nodes, err := All(ctx, src, inc, label)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 1:
		return nodes[0], nil
	case 0:
		return nil, NewNotFoundError(label)
	default:
		return nil, NewNotSingularError(label, len(nodes))
	}
}
