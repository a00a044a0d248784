package gen

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/navgen"
)

// shapeEmitter is the default ShapeEmitter.
type shapeEmitter struct {
	cfg *Config
}

// NewShapeEmitter returns the ShapeEmitter used by default.
func NewShapeEmitter(cfg *Config) ShapeEmitter {
	return &shapeEmitter{cfg: cfg}
}

// EmitShapes renders <entity>_nav.go.
func (s *shapeEmitter) EmitShapes(plan *Plan, ep *EntityPlan) (*jen.File, error) {
	e := ep.Entity
	if len(ep.caps) == 0 || ep.caps[0].Kind != Baseline {
		return nil, NewEntityError(e.Name, "", "plan has no baseline capability", nil)
	}
	f := newFile(s.cfg, e.PkgPath, e.PkgName)
	rt := s.cfg.RuntimePackage

	for _, c := range ep.caps {
		if err := s.genShape(f, plan, ep, c); err != nil {
			return nil, err
		}
	}
	s.genNav(f, ep)
	for _, c := range ep.caps[1:] {
		if err := s.genOp(f, plan, ep, c); err != nil {
			return nil, err
		}
	}
	s.genTerminals(f, ep)

	f.Var().DefsFunc(func(g *jen.Group) {
		for _, c := range ep.caps {
			g.Commentf("%s describes %s.", c.DescriptorVar(), c.Shape)
			g.Id(c.DescriptorVar()).Op("=").Add(descriptorLit(rt, c.Descriptor()))
		}
	})
	f.Commentf("%s returns the descriptors of every shape generated for %s.", descriptorsFunc(e.Name), e.Name)
	f.Func().Id(descriptorsFunc(e.Name)).Params().Index().Qual(rt, "Descriptor").Block(
		jen.Return(jen.Index().Qual(rt, "Descriptor").ValuesFunc(func(g *jen.Group) {
			for _, c := range ep.caps {
				g.Id(c.DescriptorVar())
			}
		})),
	)
	return f, nil
}

// genShape declares the shape struct of c.
func (s *shapeEmitter) genShape(f *jen.File, plan *Plan, ep *EntityPlan, c *Capability) error {
	e := ep.Entity
	if c.Kind == Baseline {
		f.Commentf("%s holds the scalar fields of %s.", c.Shape, e.Name)
		f.Type().Id(c.Shape).StructFunc(func(g *jen.Group) {
			for _, fd := range e.Scalars() {
				g.Id(fd.Name).Add(typeCode(fd.Type))
			}
		})
		return nil
	}
	inc := c.Includes[0]
	sub, err := s.subType(plan, c, inc)
	if err != nil {
		return err
	}
	f.Commentf("%s is %s with %s loaded.", c.Shape, e.Name, c.Path)
	f.Type().Id(c.Shape).Struct(
		jen.Id(ep.Baseline().Shape),
		jen.Id(inc.Relationship).Add(sub),
	)
	return nil
}

// subType is the type of the relationship field of a non-baseline shape.
func (s *shapeEmitter) subType(plan *Plan, c *Capability, inc Include) (jen.Code, error) {
	target, ok := plan.Entity(inc.Target)
	if !ok || inc.Sub == nil {
		return nil, NewEntityError(c.Entity, c.Path.Key(), "relationship "+inc.Relationship+" has no target capability", nil)
	}
	typ := jen.Op("*").Qual(target.Entity.PkgPath, inc.Sub.Shape)
	if inc.Many {
		return jen.Index().Add(typ), nil
	}
	return typ, nil
}

// genNav declares the builder of the entity and its entry point.
func (s *shapeEmitter) genNav(f *jen.File, ep *EntityPlan) {
	e := ep.Entity
	rt := s.cfg.RuntimePackage
	nav := ep.Baseline().Nav
	src := jen.Qual(rt, "Source").Types(jen.Id(e.Name))

	f.Commentf("%s builds a query for %s entities. Each With method returns a", nav, e.Name)
	f.Comment("builder whose type names the shape it guarantees; the relationships of")
	f.Comment("every call are merged into one include.")
	f.Type().Id(nav).Struct(
		jen.Id("src").Add(src),
		jen.Id("inc").Qual(rt, "Include"),
	)
	f.Commentf("%s returns a %s loading from src.", queryName(e.Name), nav)
	f.Func().Id(queryName(e.Name)).Params(jen.Id("src").Add(src)).Id(nav).Block(
		jen.Return(jen.Id(nav).Values(jen.Dict{jen.Id("src"): jen.Id("src")})),
	)
	f.Comment("Include returns the relationships added so far.")
	f.Func().Params(jen.Id("n").Id(nav)).Id("Include").Params().Qual(rt, "Include").Block(
		jen.Return(jen.Id("n").Dot("inc")),
	)
	f.Commentf("Descriptor returns %s.", ep.Baseline().DescriptorVar())
	f.Func().Params(jen.Id(nav)).Id("Descriptor").Params().Qual(rt, "Descriptor").Block(
		jen.Return(jen.Id(ep.Baseline().DescriptorVar())),
	)
}

// genOp declares the capability builder of c and the op returning it.
func (s *shapeEmitter) genOp(f *jen.File, plan *Plan, ep *EntityPlan, c *Capability) error {
	rt := s.cfg.RuntimePackage
	nav := ep.Baseline().Nav
	inc := c.Includes[0]

	f.Commentf("%s is a %s guaranteeing %s.", c.Nav, nav, c.Shape)
	f.Type().Id(c.Nav).Struct(jen.Id(nav))
	f.Commentf("Descriptor returns %s, the shape the type of %s guarantees. After", c.DescriptorVar(), c.Nav)
	f.Comment("chained calls it names the last one only; Include reports every relationship")
	f.Comment("merged so far.")
	f.Func().Params(jen.Id(c.Nav)).Id("Descriptor").Params().Qual(rt, "Descriptor").Block(
		jen.Return(jen.Id(c.DescriptorVar())),
	)

	wrap := func(incExpr jen.Code) jen.Code {
		return jen.Return(jen.Id(c.Nav).Values(jen.Id(nav).Values(jen.Dict{
			jen.Id("src"): jen.Id("n").Dot("src"),
			jen.Id("inc"): incExpr,
		})))
	}
	if c.Kind == Composite {
		segs := make([]jen.Code, 0, c.Path.Len())
		for _, seg := range c.Path.Segments() {
			segs = append(segs, jen.Lit(seg))
		}
		f.Commentf("%s includes the path %s.", c.Op, c.Path)
		f.Func().Params(jen.Id("n").Id(nav)).Id(c.Op).Params().Id(c.Nav).Block(
			wrap(jen.Id("n").Dot("inc").Dot("WithPath").Call(segs...)),
		)
		return nil
	}
	target, ok := plan.Entity(inc.Target)
	if !ok {
		return NewEntityError(c.Entity, c.Path.Key(), "unknown target "+inc.Target, nil)
	}
	subNav := jen.Qual(target.Entity.PkgPath, target.Baseline().Nav)
	f.Commentf("%s includes the %s relationship. Options refine what is loaded", c.Op, inc.Relationship)
	f.Commentf("along with %s.", inc.Target)
	f.Func().Params(jen.Id("n").Id(nav)).Id(c.Op).Params(
		jen.Id("opts").Op("...").Func().Params(subNav).Qual(rt, "Includer"),
	).Id(c.Nav).Block(
		jen.Var().Id("sub").Qual(rt, "Include"),
		jen.For(jen.List(jen.Id("_"), jen.Id("opt")).Op(":=").Range().Id("opts")).Block(
			jen.Id("sub").Op("=").Id("sub").Dot("Merge").Call(
				jen.Id("opt").Call(jen.Qual(target.Entity.PkgPath, target.Baseline().Nav).Values()).Dot("Include").Call(),
			),
		),
		wrap(jen.Id("n").Dot("inc").Dot("With").Call(jen.Lit(inc.Relationship), jen.Id("sub"))),
	)
	return nil
}

// genTerminals declares the materializing methods on the entity builder.
func (s *shapeEmitter) genTerminals(f *jen.File, ep *EntityPlan) {
	e := ep.Entity
	rt := s.cfg.RuntimePackage
	nav := ep.Baseline().Nav
	ctx := jen.Id("ctx").Qual("context", "Context")
	call := func(fn string) jen.Code {
		return jen.Return(jen.Qual(rt, fn).Call(jen.Id("ctx"), jen.Id("n").Dot("src"), jen.Id("n").Dot("inc"), jen.Lit(e.Name)))
	}

	f.Commentf("All loads every %s with the included relationships.", e.Name)
	f.Func().Params(jen.Id("n").Id(nav)).Id("All").Params(ctx).Params(jen.Index().Op("*").Id(e.Name), jen.Error()).Block(call("All"))
	f.Commentf("First returns the first %s, or a not found error.", e.Name)
	f.Func().Params(jen.Id("n").Id(nav)).Id("First").Params(ctx).Params(jen.Op("*").Id(e.Name), jen.Error()).Block(call("First"))
	f.Commentf("Only returns the single %s, failing when there is none or more than one.", e.Name)
	f.Func().Params(jen.Id("n").Id(nav)).Id("Only").Params(ctx).Params(jen.Op("*").Id(e.Name), jen.Error()).Block(call("Only"))
}

// descriptorLit renders d as a composite literal of the runtime Descriptor.
func descriptorLit(rt string, d navgen.Descriptor) *jen.Statement {
	dict := jen.Dict{
		jen.Id("Entity"): jen.Lit(d.Entity),
		jen.Id("Shape"):  jen.Lit(d.Shape),
	}
	if d.Path != "" {
		dict[jen.Id("Path")] = jen.Lit(d.Path)
	}
	if len(d.Edges) > 0 {
		dict[jen.Id("Edges")] = jen.Index().Qual(rt, "Edge").ValuesFunc(func(g *jen.Group) {
			for _, e := range d.Edges {
				ed := jen.Dict{
					jen.Id("Name"):   jen.Lit(e.Name),
					jen.Id("Target"): jen.Lit(e.Target),
				}
				if e.Many {
					ed[jen.Id("Many")] = jen.True()
				}
				if e.Sub != nil {
					ed[jen.Id("Sub")] = jen.Op("&").Add(descriptorLit(rt, *e.Sub))
				}
				g.Values(ed)
			}
		})
	}
	return jen.Qual(rt, "Descriptor").Values(dict)
}
