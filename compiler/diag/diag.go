// Package diag defines the diagnostics reported by the navgen compiler.
//
// Diagnostics are values, never errors: a stage that finds a problem local to
// one chain, path or field records a Diagnostic and keeps going.
package diag

import (
	"fmt"
	"go/token"
	"slices"
	"strings"
)

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	default:
		return fmt.Errorf("diag: unknown severity %q", text)
	}
	return nil
}

// Code identifies a class of diagnostic.
type Code string

const (
	// MalformedChain reports a navigation chain that could not be understood.
	MalformedChain Code = "NAV001"
	// DepthExceeded reports a path truncated to the maximum depth.
	DepthExceeded Code = "NAV002"
	// UnresolvedRelationship reports a path segment or root entity that is not declared.
	UnresolvedRelationship Code = "NAV003"
	// UnmappedField reports a projection field left unmapped or a relationship
	// path that no generated shape exposes.
	UnmappedField Code = "NAV004"
	// EntityFailed reports an entity whose generation failed and fell back to
	// its baseline shapes.
	EntityFailed Code = "NAV005"
	// DuplicateEntity reports two entity declarations with the same name.
	DuplicateEntity Code = "NAV006"
	// NameCollision reports a generated identifier that clashes with another.
	NameCollision Code = "NAV007"
)

// Position is a location in Go source.
type Position struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty" msgpack:"file"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty" msgpack:"line"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty" msgpack:"column"`
}

// PositionOf converts a token.Position.
func PositionOf(p token.Position) Position {
	return Position{File: p.Filename, Line: p.Line, Column: p.Column}
}

// IsValid reports whether the position names a file.
func (p Position) IsValid() bool {
	return p.File != ""
}

// String returns file:line:column, omitting unknown parts.
func (p Position) String() string {
	switch {
	case p.File == "":
		return "-"
	case p.Line == 0:
		return p.File
	case p.Column == 0:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
}

// Compare orders positions by file, line and column.
func (p Position) Compare(o Position) int {
	if c := strings.Compare(p.File, o.File); c != 0 {
		return c
	}
	if p.Line != o.Line {
		return p.Line - o.Line
	}
	return p.Column - o.Column
}

// Diagnostic is a single finding.
type Diagnostic struct {
	Code     Code     `json:"code" yaml:"code"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Pos      Position `json:"pos,omitempty" yaml:"pos,omitempty"`
	Entity   string   `json:"entity,omitempty" yaml:"entity,omitempty"`
}

// Newf returns a Diagnostic with a formatted message.
func Newf(code Code, sev Severity, pos Position, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: sev, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// WithEntity returns a copy of d attributed to entity.
func (d Diagnostic) WithEntity(entity string) Diagnostic {
	d.Entity = entity
	return d
}

// String formats the diagnostic as "pos: CODE severity: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s %s: %s", d.Pos, d.Code, d.Severity, d.Message)
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Add appends a diagnostic.
func (l *List) Add(d Diagnostic) {
	*l = append(*l, d)
}

// Addf appends a formatted diagnostic.
func (l *List) Addf(code Code, sev Severity, pos Position, format string, args ...any) {
	l.Add(Newf(code, sev, pos, format, args...))
}

// Append appends every diagnostic in o.
func (l *List) Append(o List) {
	*l = append(*l, o...)
}

// Sort orders the list by position, code and message. The sort is stable so
// diagnostics without positions keep their emission order.
func (l List) Sort() {
	slices.SortStableFunc(l, func(a, b Diagnostic) int {
		if c := a.Pos.Compare(b.Pos); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Code), string(b.Code)); c != 0 {
			return c
		}
		return strings.Compare(a.Message, b.Message)
	})
}

// Count returns the number of diagnostics with the given severity.
func (l List) Count(sev Severity) int {
	n := 0
	for _, d := range l {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether the list holds an Error diagnostic.
func (l List) HasErrors() bool {
	return l.Count(Error) > 0
}

// Filter returns the diagnostics with the given code.
func (l List) Filter(code Code) List {
	var out List
	for _, d := range l {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// ForEntity returns the diagnostics attributed to entity.
func (l List) ForEntity(entity string) List {
	var out List
	for _, d := range l {
		if d.Entity == entity {
			out = append(out, d)
		}
	}
	return out
}
