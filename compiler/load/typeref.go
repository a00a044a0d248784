package load

import (
	"go/ast"
	"go/types"
	"path"
	"strconv"
	"strings"
)

// TypeKind classifies a TypeRef.
type TypeKind uint8

const (
	// KindIdent is a type declared in the same package, or a predeclared type.
	KindIdent TypeKind = iota
	// KindQualified is a type imported from another package.
	KindQualified
	KindPointer
	KindSlice
	KindArray
	KindMap
	// KindRaw is any other type expression, kept as source text.
	KindRaw
)

// TypeRef is a declared field type, resolved enough to be re-emitted in
// another file or package.
type TypeRef struct {
	Kind TypeKind `json:"kind"`
	// Name is the type name for idents and qualified types, or the source
	// text for raw types.
	Name string `json:"name,omitempty"`
	// Pkg is the import path declaring the type. Empty for predeclared
	// types and raw expressions.
	Pkg string `json:"pkg,omitempty"`
	// Len is the array length expression.
	Len  string   `json:"len,omitempty"`
	Key  *TypeRef `json:"key,omitempty"`
	Elem *TypeRef `json:"elem,omitempty"`
}

// Builtin reports whether t is a predeclared identifier such as int or error.
func (t *TypeRef) Builtin() bool {
	return t.Kind == KindIdent && t.Pkg == ""
}

// Equal reports whether t and o denote the same type, however they were
// spelled.
func (t *TypeRef) Equal(o *TypeRef) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Kind.named() == o.Kind.named() && t.Name == o.Name && t.Pkg == o.Pkg && t.Len == o.Len &&
		t.Key.Equal(o.Key) && t.Elem.Equal(o.Elem)
}

// named folds qualified types onto identifiers: both are identified by
// their package and name alone.
func (k TypeKind) named() TypeKind {
	if k == KindQualified {
		return KindIdent
	}
	return k
}

// String renders t in Go syntax, qualifying imported types with the last
// element of their import path.
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case KindQualified:
		return PackageName(t.Pkg) + "." + t.Name
	case KindPointer:
		return "*" + t.Elem.String()
	case KindSlice:
		return "[]" + t.Elem.String()
	case KindArray:
		return "[" + t.Len + "]" + t.Elem.String()
	case KindMap:
		return "map[" + t.Key.String() + "]" + t.Elem.String()
	default:
		return t.Name
	}
}

// element strips at most one slice and one pointer in the order []*T, []T, *T.
func (t *TypeRef) element() (elem *TypeRef, many, ptr bool) {
	elem = t
	if elem.Kind == KindSlice {
		many = true
		elem = elem.Elem
	}
	if elem.Kind == KindPointer {
		ptr = true
		elem = elem.Elem
	}
	return elem, many, ptr
}

// PackageName guesses the package name of an import path: the last path
// element without a major version suffix ("/v2", ".v3").
func PackageName(importPath string) string {
	name := path.Base(importPath)
	if len(name) > 1 && name[0] == 'v' && isDigits(name[1:]) {
		if dir := path.Dir(importPath); dir != "." && dir != "/" {
			name = path.Base(dir)
		}
	}
	if i := strings.LastIndex(name, ".v"); i > 0 && isDigits(name[i+2:]) {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "-", "")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// typeResolver turns type expressions of one file into TypeRefs.
type typeResolver struct {
	pkgPath string
	imports map[string]string
	info    *types.Info
}

func newTypeResolver(f *File) *typeResolver {
	r := &typeResolver{pkgPath: f.PkgPath, imports: make(map[string]string), info: f.Info}
	for _, imp := range f.Syntax.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := PackageName(p)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		r.imports[name] = p
	}
	return r
}

func (r *typeResolver) resolve(expr ast.Expr) *TypeRef {
	switch x := expr.(type) {
	case *ast.Ident:
		if types.Universe.Lookup(x.Name) != nil {
			return &TypeRef{Kind: KindIdent, Name: x.Name}
		}
		return &TypeRef{Kind: KindIdent, Name: x.Name, Pkg: r.pkgPath}
	case *ast.SelectorExpr:
		if pkg, ok := r.importPath(x); ok {
			return &TypeRef{Kind: KindQualified, Name: x.Sel.Name, Pkg: pkg}
		}
	case *ast.StarExpr:
		return &TypeRef{Kind: KindPointer, Elem: r.resolve(x.X)}
	case *ast.ArrayType:
		if x.Len == nil {
			return &TypeRef{Kind: KindSlice, Elem: r.resolve(x.Elt)}
		}
		return &TypeRef{Kind: KindArray, Len: types.ExprString(x.Len), Elem: r.resolve(x.Elt)}
	case *ast.MapType:
		return &TypeRef{Kind: KindMap, Key: r.resolve(x.Key), Elem: r.resolve(x.Value)}
	case *ast.ParenExpr:
		return r.resolve(x.X)
	}
	return &TypeRef{Kind: KindRaw, Name: types.ExprString(expr)}
}

func (r *typeResolver) importPath(sel *ast.SelectorExpr) (string, bool) {
	id, ok := sel.X.(*ast.Ident)
	if !ok {
		return "", false
	}
	if r.info != nil {
		if pn, ok := r.info.Uses[id].(*types.PkgName); ok {
			return pn.Imported().Path(), true
		}
	}
	p, ok := r.imports[id.Name]
	return p, ok
}
