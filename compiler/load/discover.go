package load

import (
	"context"
	"go/ast"
	"go/token"
	"reflect"
	"strings"

	"github.com/syssam/navgen/compiler/diag"
)

// Directives recognized in type declaration comments.
const (
	EntityDirective     = "//navgen:entity"
	ProjectionDirective = "//navgen:projection"
)

// Options configures Discover.
type Options struct {
	// EntityPackages lists import paths whose exported structs are all
	// entities, annotated or not.
	EntityPackages []string
}

type typeDecl struct {
	file   *File
	spec   *ast.TypeSpec
	st     *ast.StructType
	target string
}

// Discover finds the entities and companion structs declared in snap.
// Generated files are skipped.
func Discover(ctx context.Context, snap *Snapshot, opts Options) (*Catalog, diag.List, error) {
	var (
		ds         diag.List
		entDecls   []typeDecl
		compDecls  []typeDecl
		entityPkgs = make(map[string]bool, len(opts.EntityPackages))
	)
	for _, p := range opts.EntityPackages {
		entityPkgs[p] = true
	}
	for _, f := range snap.files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if f.Generated {
			continue
		}
		for _, decl := range f.Syntax.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || ts.TypeParams != nil {
					continue
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					continue
				}
				docs := []*ast.CommentGroup{ts.Doc}
				if len(gd.Specs) == 1 {
					docs = append(docs, gd.Doc)
				}
				d := parseDirectives(docs...)
				td := typeDecl{file: f, spec: ts, st: st, target: d.projection}
				switch {
				case d.hasProjection && d.projection == "":
					ds.Addf(diag.UnresolvedRelationship, diag.Warning, snap.Position(ts.Pos()),
						"%s directive on %s names no entity", ProjectionDirective, ts.Name.Name)
				case d.hasProjection:
					compDecls = append(compDecls, td)
				case d.entity || (entityPkgs[f.PkgPath] && ts.Name.IsExported()):
					entDecls = append(entDecls, td)
				}
			}
		}
	}

	entities := make(map[string]*Entity, len(entDecls))
	var ordered []*Entity
	for _, d := range entDecls {
		name := d.spec.Name.Name
		pos := snap.Position(d.spec.Pos())
		if prev, dup := entities[name]; dup {
			ds.Add(diag.Newf(diag.DuplicateEntity, diag.Warning, pos,
				"entity %s already declared at %s; ignoring this declaration", name, prev.Pos).WithEntity(name))
			continue
		}
		e := &Entity{Name: name, PkgPath: d.file.PkgPath, PkgName: d.file.PkgName, Dir: d.file.Dir(), Pos: pos}
		entities[name] = e
		ordered = append(ordered, e)
	}
	isEntity := func(ref *TypeRef) (string, bool) {
		e, ok := entities[ref.Name]
		if !ok || (ref.Pkg != "" && ref.Pkg != e.PkgPath) {
			return "", false
		}
		return e.Name, true
	}
	for _, d := range entDecls {
		// Duplicates share the name but not the position of the kept entity.
		e, ok := entities[d.spec.Name.Name]
		if !ok || e.Pos != snap.Position(d.spec.Pos()) {
			continue
		}
		e.Fields = structFields(snap, d.file, d.st, func(ref *TypeRef) (string, string, bool) {
			target, ok := isEntity(ref)
			return target, "", ok
		})
	}

	compTargets := make(map[string]string, len(compDecls))
	var valid []typeDecl
	for _, d := range compDecls {
		if _, ok := entities[d.target]; !ok {
			ds.Addf(diag.UnresolvedRelationship, diag.Warning, snap.Position(d.spec.Pos()),
				"projection %s targets %q, which is not an entity", d.spec.Name.Name, d.target)
			continue
		}
		compTargets[d.file.PkgPath+"."+d.spec.Name.Name] = d.target
		valid = append(valid, d)
	}
	var companions []*Companion
	for _, d := range valid {
		pkgPath := d.file.PkgPath
		c := &Companion{
			Name:    d.spec.Name.Name,
			PkgPath: pkgPath,
			PkgName: d.file.PkgName,
			Dir:     d.file.Dir(),
			Entity:  d.target,
			Pos:     snap.Position(d.spec.Pos()),
		}
		c.Fields = structFields(snap, d.file, d.st, func(ref *TypeRef) (string, string, bool) {
			pkg := ref.Pkg
			if pkg == "" {
				pkg = pkgPath
			}
			if target, ok := compTargets[pkg+"."+ref.Name]; ok {
				return target, ref.Name, true
			}
			target, ok := isEntity(ref)
			return target, "", ok
		})
		companions = append(companions, c)
	}
	ds.Sort()
	return NewCatalog(ordered, companions), ds, nil
}

// structFields collects the exported named fields of st. classify reports
// whether an element type is a relationship, and to what.
func structFields(snap *Snapshot, f *File, st *ast.StructType, classify func(*TypeRef) (target, companion string, ok bool)) []*Field {
	r := newTypeResolver(f)
	var fields []*Field
	for _, fl := range st.Fields.List {
		if len(fl.Names) == 0 {
			continue
		}
		ref := r.resolve(fl.Type)
		elem, many, ptr := ref.element()
		var tag string
		if fl.Tag != nil {
			tag = strings.Trim(fl.Tag.Value, "`")
		}
		if skipField(tag) {
			continue
		}
		for _, name := range fl.Names {
			if !name.IsExported() {
				continue
			}
			fd := &Field{
				Name:    name.Name,
				Type:    ref,
				Many:    many,
				Pointer: ptr,
				Tag:     tag,
				Pos:     snap.Position(name.Pos()),
			}
			if elem.Kind == KindIdent || elem.Kind == KindQualified {
				fd.Elem = elem.Name
				if target, companion, ok := classify(elem); ok && !elem.Builtin() {
					fd.Kind = Relationship
					fd.Target = target
					fd.Companion = companion
				}
			}
			fields = append(fields, fd)
		}
	}
	return fields
}

// skipField reports whether the struct tag opts the field out with navgen:"-".
func skipField(tag string) bool {
	return reflect.StructTag(tag).Get("navgen") == "-"
}

type directives struct {
	entity        bool
	hasProjection bool
	projection    string
}

func parseDirectives(groups ...*ast.CommentGroup) directives {
	var d directives
	for _, cg := range groups {
		if cg == nil {
			continue
		}
		for _, c := range cg.List {
			text := strings.TrimSpace(c.Text)
			switch {
			case text == EntityDirective || strings.HasPrefix(text, EntityDirective+" "):
				d.entity = true
			case text == ProjectionDirective || strings.HasPrefix(text, ProjectionDirective+" "):
				d.hasProjection = true
				arg := strings.TrimSpace(strings.TrimPrefix(text, ProjectionDirective))
				if i := strings.LastIndex(arg, "."); i >= 0 {
					arg = arg[i+1:]
				}
				d.projection = arg
			}
		}
	}
	return d
}
