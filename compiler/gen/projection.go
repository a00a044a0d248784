package gen

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/navgen/compiler/diag"
	"github.com/syssam/navgen/compiler/load"
	"github.com/syssam/navgen/compiler/usage"
)

// projectionEmitter is the default ProjectionEmitter.
type projectionEmitter struct {
	cfg *Config
	cat *load.Catalog
}

// NewProjectionEmitter returns the ProjectionEmitter used by default. cat
// resolves companion types nested inside other companions.
func NewProjectionEmitter(cfg *Config, cat *load.Catalog) ProjectionEmitter {
	return &projectionEmitter{cfg: cfg, cat: cat}
}

// mapping holds the state of one projection function being rendered.
type mapping struct {
	e     *projectionEmitter
	plan  *Plan
	root  *load.Entity
	comp  *load.Companion
	vars  *scope
	paths *usage.TreeBuilder
	ds    diag.List
}

// EmitProjection renders <companion>_projection.go: a mapping function and
// the Projection variable registering it.
func (p *projectionEmitter) EmitProjection(plan *Plan, cp *load.Companion) (*jen.File, diag.List, error) {
	ep, ok := plan.Entity(cp.Entity)
	if !ok {
		return nil, nil, NewEntityError(cp.Entity, "", "projection "+cp.Name+" targets an entity without a plan", nil)
	}
	root := ep.Entity
	m := &mapping{
		e:     p,
		plan:  plan,
		root:  root,
		comp:  cp,
		vars:  newScope("e", "r"),
		paths: usage.NewTreeBuilder(),
	}
	body := m.fields(jen.Id("r"), jen.Id("e"), cp.Fields, root, usage.Path{})

	rt := p.cfg.RuntimePackage
	entity := jen.Qual(root.PkgPath, root.Name)
	f := newFile(p.cfg, cp.PkgPath, cp.PkgName)
	fn := projectName(cp.Name)

	f.Commentf("%s maps %s onto a %s. Relationships that were not loaded are", fn, root.Name, cp.Name)
	f.Comment("left at their zero value.")
	f.Func().Id(fn).Params(jen.Id("e").Op("*").Add(entity)).Op("*").Id(cp.Name).BlockFunc(func(g *jen.Group) {
		g.If(jen.Id("e").Op("==").Nil()).Block(jen.Return(jen.Nil()))
		g.Id("r").Op(":=").Op("&").Id(cp.Name).Values()
		for _, s := range body {
			g.Add(s)
		}
		g.Return(jen.Id("r"))
	})

	dict := jen.Dict{
		jen.Id("Name"):   jen.Lit(cp.Name),
		jen.Id("Entity"): jen.Lit(root.Name),
		jen.Id("Map"):    jen.Id(fn),
	}
	if leaves := m.paths.Build(usage.DeclarationOrder(p.cat, root.Name)).Leaves(); len(leaves) > 0 {
		lits := make([]jen.Code, len(leaves))
		for i, l := range leaves {
			lits[i] = jen.Lit(l.Key())
		}
		dict[jen.Id("Include")] = jen.Qual(rt, "MustInclude").Call(lits...)
	}
	f.Commentf("%s reads %s entities into %s values.", projectionVar(cp.Name), root.Name, cp.Name)
	f.Var().Id(projectionVar(cp.Name)).Op("=").Qual(rt, "Projection").Types(entity, jen.Id(cp.Name)).Values(dict)

	m.ds.Sort()
	return f, m.ds, nil
}

// fields maps every companion field from src, an expression of entity type
// reached from the root at path, into dst.
func (m *mapping) fields(dst, src *jen.Statement, fields []*load.Field, entity *load.Entity, path usage.Path) []jen.Code {
	var out []jen.Code
	for _, cf := range fields {
		ef, ok := entity.Field(cf.Name)
		if !ok {
			m.info(cf, "field %s of %s has no counterpart on %s; left unmapped", cf.Name, m.comp.Name, entity.Name)
			continue
		}
		if !ef.IsRelationship() {
			if !cf.Type.Equal(ef.Type) {
				m.info(cf, "field %s of %s has type %s, %s.%s has %s; left unmapped",
					cf.Name, m.comp.Name, cf.Type, entity.Name, ef.Name, ef.Type)
				continue
			}
			out = append(out, dst.Clone().Dot(cf.Name).Op("=").Add(src.Clone().Dot(ef.Name)))
			continue
		}
		rel := path.Append(ef.Name)
		if _, ok := m.plan.Lookup(m.root.Name, rel); !ok {
			m.ds.Add(diag.Newf(diag.UnmappedField, diag.Warning, cf.Pos,
				"%s.%s reads %s of %s, which no generated shape includes; omitted",
				m.comp.Name, cf.Name, rel, m.root.Name).WithEntity(m.root.Name))
			continue
		}
		if code, ok := m.relationship(dst, src, cf, ef, rel); ok {
			m.paths.Insert(rel)
			out = append(out, code)
		}
	}
	return out
}

// relationship maps one relationship field. Identical types are assigned
// as is; a companion type is mapped field by field.
func (m *mapping) relationship(dst, src *jen.Statement, cf, ef *load.Field, rel usage.Path) (jen.Code, bool) {
	from := src.Clone().Dot(ef.Name)
	to := dst.Clone().Dot(cf.Name)
	if cf.Type.Equal(ef.Type) {
		return to.Op("=").Add(from), true
	}
	nested, ok := m.companion(cf)
	if !ok || cf.Target != ef.Target || cf.Many != ef.Many {
		m.info(cf, "field %s of %s has type %s, which does not map from %s %s; left unmapped",
			cf.Name, m.comp.Name, cf.Type, ef.Name, ef.Type)
		return nil, false
	}
	target, ok := m.e.cat.Entity(ef.Target)
	if !ok {
		return nil, false
	}

	typ := jen.Qual(nested.PkgPath, nested.Name)
	v := m.vars.name(loopVar(ef.Name) + "View")
	build := func(elem *jen.Statement) []jen.Code {
		stmts := []jen.Code{jen.Id(v).Op(":=").Op("&").Add(typ.Clone()).Values()}
		return append(stmts, m.fields(jen.Id(v), elem, nested.Fields, target, rel)...)
	}

	if !ef.Many {
		body := build(from.Clone())
		if cf.Pointer {
			body = append(body, to.Clone().Op("=").Id(v))
		} else {
			body = append(body, to.Clone().Op("=").Op("*").Id(v))
		}
		if ef.Pointer {
			return jen.If(from.Clone().Op("!=").Nil()).Block(body...), true
		}
		return jen.Block(body...), true
	}

	elemType := typ.Clone()
	if cf.Pointer {
		elemType = jen.Op("*").Add(typ.Clone())
	}
	var loop *jen.Statement
	var body []jen.Code
	if ef.Pointer {
		x := m.vars.name(loopVar(ef.Name))
		loop = jen.For(jen.List(jen.Id("_"), jen.Id(x)).Op(":=").Range().Add(from.Clone()))
		body = append(body, jen.If(jen.Id(x).Op("==").Nil()).Block(jen.Continue()))
		body = append(body, build(jen.Id(x))...)
	} else {
		i := m.vars.name("i")
		loop = jen.For(jen.Id(i).Op(":=").Range().Add(from.Clone()))
		body = append(body, build(from.Clone().Index(jen.Id(i)))...)
	}
	if cf.Pointer {
		body = append(body, to.Clone().Op("=").Append(to.Clone(), jen.Id(v)))
	} else {
		body = append(body, to.Clone().Op("=").Append(to.Clone(), jen.Op("*").Id(v)))
	}
	return jen.If(from.Clone().Op("!=").Nil()).Block(
		to.Clone().Op("=").Make(jen.Index().Add(elemType), jen.Lit(0), jen.Len(from.Clone())),
		loop.Block(body...),
	), true
}

// companion returns the companion struct a field is typed with.
func (m *mapping) companion(cf *load.Field) (*load.Companion, bool) {
	if cf.Companion == "" {
		return nil, false
	}
	elem := cf.Type
	for elem.Kind == load.KindSlice || elem.Kind == load.KindPointer {
		elem = elem.Elem
	}
	pkg := elem.Pkg
	if pkg == "" {
		pkg = m.comp.PkgPath
	}
	return m.e.cat.Companion(pkg, cf.Companion)
}

func (m *mapping) info(cf *load.Field, format string, args ...any) {
	m.ds.Add(diag.Newf(diag.UnmappedField, diag.Info, cf.Pos, format, args...).WithEntity(m.root.Name))
}
