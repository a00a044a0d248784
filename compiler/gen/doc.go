// Package gen plans and renders navigation code for entity structs.
//
// Generation is driven by the relationship paths calling code actually
// navigates, as aggregated into a usage.Set. Instead of one shape per
// subset of relationships, every entity gets a bounded number of shapes.
//
// # Pipeline
//
//	load.Catalog + usage.Set
//	        ↓
//	   NewPlan (capabilities per entity)
//	        ↓
//	   ShapeEmitter (<entity>_nav.go) / ProjectionEmitter (<companion>_projection.go)
//	        ↓
//	   Writer
//
// # Capabilities
//
// A Capability is one shape of an entity together with the builder type and
// the op producing it:
//
//   - Baseline: <Entity>Shape with scalar fields only, built by <Entity>Nav.
//   - Single: <Entity>With<R> for every relationship R, produced by
//     With<R>(opts ...) on the builder. Always planned.
//   - Composite: <Entity>With<R><S> nesting the target's <T>With<S> shape,
//     produced by the shortcut op With<R><S>(). Planned for observed tree
//     nodes, or for every R/S pair when the entity has no observed usage
//     and fallback is enabled.
//
// Ops on a builder return a builder whose type names the shape it
// guarantees, while its value carries the union of every relationship
// included so far.
//
// # Failure Isolation
//
// Entities render independently. A failure or panic while rendering one
// entity degrades that entity to its baseline and singles and is reported
// as an EntityFailed diagnostic; the run continues for the others.
//
// # Error Handling
//
// The package uses structured error types:
//
//   - ConfigError: invalid options
//   - EntityError: an entity that could not be rendered
//   - GenerationError: rendering or writing failures
//
// Problems with the analyzed code itself are diag.Diagnostic values, not errors.
//
// # Configuration
//
// Configuration uses functional options:
//
//	cfg, err := gen.NewConfig(
//	    gen.WithMaxDepth(2),
//	    gen.WithFallback(true),
//	    gen.WithWorkers(4),
//	)
//	res, err := gen.NewGenerator(cfg, catalog).Generate(ctx, usageSet)
package gen
