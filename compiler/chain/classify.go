// Package chain discovers the navigation chains calling code executes.
//
// A chain is a sequence of method calls ending in a terminal, such as
//
//	QueryOrder(src).WithCustomer(func(c CustomerNav) navgen.Includer {
//		return c.WithShippingAddress()
//	}).WithLines().All(ctx)
//
// Discovery walks each terminal's receiver backwards, collects traversal
// calls into a tree of Nodes and reports every leaf as a Usage of the root
// entity.
package chain

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"
	"unicode"
)

// DefaultTerminals are the method names that materialize a chain.
var DefaultTerminals = []string{"All", "AllX", "First", "FirstX", "Only", "OnlyX", "IDs", "Exec"}

// Kind classifies a call expression.
type Kind uint8

const (
	Unrecognized Kind = iota
	Traversal
	Terminal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Traversal:
		return "traversal"
	case Terminal:
		return "terminal"
	default:
		return "unrecognized"
	}
}

// Class is the result of Classify.
type Class struct {
	Kind Kind
	// Name is the relationship name of a traversal. A string-literal
	// traversal may name a nested path such as "Customer/ShippingAddress".
	Name string
	// Literal reports the With("<Name>", ...) form, whose first argument is
	// the name rather than a nested chain.
	Literal bool
}

// Terminals is a set of terminal method names.
type Terminals map[string]bool

// NewTerminals returns a set holding names, or DefaultTerminals when names is empty.
func NewTerminals(names ...string) Terminals {
	if len(names) == 0 {
		names = DefaultTerminals
	}
	t := make(Terminals, len(names))
	for _, n := range names {
		t[n] = true
	}
	return t
}

// Classify reports whether call is a traversal, a terminal or neither.
// It only looks at the call's own syntax.
func Classify(call *ast.CallExpr, terminals Terminals) Class {
	sel := selectorOf(call.Fun)
	if sel == nil {
		return Class{}
	}
	name := sel.Sel.Name
	switch {
	case terminals[name]:
		return Class{Kind: Terminal, Name: name}
	case name == "With":
		if len(call.Args) == 0 {
			return Class{}
		}
		lit, ok := ast.Unparen(call.Args[0]).(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return Class{}
		}
		v, err := strconv.Unquote(lit.Value)
		if err != nil || !validPath(v) {
			return Class{}
		}
		return Class{Kind: Traversal, Name: v, Literal: true}
	case len(name) > len("With") && strings.HasPrefix(name, "With") && unicode.IsUpper(rune(name[len("With")])):
		return Class{Kind: Traversal, Name: name[len("With"):]}
	}
	return Class{}
}

func validPath(v string) bool {
	for _, seg := range strings.Split(v, "/") {
		if !token.IsIdentifier(seg) {
			return false
		}
	}
	return true
}

// selectorOf returns the method selector of a call's function expression,
// looking through explicit instantiation such as x.M[T].
func selectorOf(fun ast.Expr) *ast.SelectorExpr {
	switch f := ast.Unparen(fun).(type) {
	case *ast.SelectorExpr:
		return f
	case *ast.IndexExpr:
		return selectorOf(f.X)
	case *ast.IndexListExpr:
		return selectorOf(f.X)
	}
	return nil
}
