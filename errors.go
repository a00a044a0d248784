package navgen

import (
	"errors"
	"fmt"
)

// Standard sentinel errors returned by generated builders.
var (
	// ErrNotFound is returned when a terminal expecting at least one entity
	// receives none.
	ErrNotFound = errors.New("navgen: entity not found")

	// ErrNotSingular is returned when a terminal that expects exactly one result
	// receives zero or several.
	ErrNotSingular = errors.New("navgen: entity not singular")

	// ErrNoSource is returned when a terminal runs on a builder that was never
	// given a Source.
	ErrNoSource = errors.New("navgen: builder has no source")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("navgen: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a terminal expects a singular
// result but receives zero or multiple results.
type NotSingularError struct {
	label string
	count int
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	return fmt.Sprintf("navgen: %s not singular (got %d results, expected 1)", e.label, e.count)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Label returns the entity label.
func (e *NotSingularError) Label() string {
	return e.label
}

// Count returns the number of results received.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError with the result count.
func NewNotSingularError(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// NotLoadedError is returned by projections when a relationship required by
// the mapping was not included in the load.
type NotLoadedError struct {
	entity string
	path   string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("navgen: relationship %q of %s was not loaded", e.path, e.entity)
}

// Path returns the relationship path that was missing.
func (e *NotLoadedError) Path() string {
	return e.path
}

// NewNotLoadedError returns a new NotLoadedError for the given relationship path.
func NewNotLoadedError(entity, path string) *NotLoadedError {
	return &NotLoadedError{entity: entity, path: path}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e)
}

// LoadError wraps a Source failure with the entity and terminal involved.
type LoadError struct {
	Entity string // Entity being loaded
	Op     string // Terminal (e.g., "all", "first", "only")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *LoadError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("navgen: loading %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("navgen: loading %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError returns a new LoadError.
func NewLoadError(entity, op string, err error) *LoadError {
	return &LoadError{Entity: entity, Op: op, Err: err}
}

// IsLoadError returns true if the error is a LoadError.
func IsLoadError(err error) bool {
	if err == nil {
		return false
	}
	var e *LoadError
	return errors.As(err, &e)
}
