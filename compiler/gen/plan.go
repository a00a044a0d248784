package gen

import (
	"context"
	"slices"

	"github.com/syssam/navgen"
	"github.com/syssam/navgen/compiler/diag"
	"github.com/syssam/navgen/compiler/load"
	"github.com/syssam/navgen/compiler/usage"
)

// Kind classifies a capability.
type Kind uint8

const (
	// Baseline is the scalar-only shape every entity has.
	Baseline Kind = iota
	// Single includes exactly one direct relationship.
	Single
	// Composite includes a multi-level path.
	Composite
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Composite:
		return "composite"
	default:
		return "baseline"
	}
}

// Origin records why a capability was planned.
type Origin uint8

const (
	// Unconditional capabilities exist for every entity: the baseline and one
	// single per relationship.
	Unconditional Origin = iota
	// Observed capabilities come from a path in the entity's usage tree.
	Observed
	// Fallback capabilities are planned for entities without observed usage.
	Fallback
	// Required capabilities are needed by a composite of another entity.
	Required
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case Observed:
		return "observed"
	case Fallback:
		return "fallback"
	case Required:
		return "required"
	default:
		return "unconditional"
	}
}

// Include is the relationship a capability adds on top of the baseline.
type Include struct {
	Relationship string
	Target       string
	Many         bool
	// Sub is the capability of the target entity the relationship is typed
	// with: the target's baseline for singles, a deeper capability for
	// composites.
	Sub *Capability
}

// Capability is one shape planned for an entity, with the builder type and
// op that produce it.
type Capability struct {
	Entity string
	// Path is empty for the baseline.
	Path     usage.Path
	Kind     Kind
	Origin   Origin
	Shape    string
	Nav      string
	Op       string
	Includes []Include
}

// DescriptorVar is the generated variable holding the capability descriptor.
func (c *Capability) DescriptorVar() string {
	return descriptorName(c.Shape)
}

// Descriptor returns the runtime descriptor of c.
func (c *Capability) Descriptor() navgen.Descriptor {
	d := navgen.Descriptor{Entity: c.Entity, Shape: c.Shape, Path: c.Path.Key()}
	for _, inc := range c.Includes {
		e := navgen.Edge{Name: inc.Relationship, Target: inc.Target, Many: inc.Many}
		if inc.Sub != nil && inc.Sub.Kind != Baseline {
			sub := inc.Sub.Descriptor()
			e.Sub = &sub
		}
		d.Edges = append(d.Edges, e)
	}
	return d
}

// EntityPlan holds the capabilities planned for one entity, baseline first,
// then singles in relationship declaration order, then composites in tree
// order.
type EntityPlan struct {
	Entity *load.Entity
	State  usage.State
	caps   []*Capability
	byPath map[usage.Path]*Capability
}

// Baseline returns the scalar-only capability.
func (p *EntityPlan) Baseline() *Capability {
	return p.caps[0]
}

// Lookup returns the capability planned at path. The zero path yields the
// baseline.
func (p *EntityPlan) Lookup(path usage.Path) (*Capability, bool) {
	c, ok := p.byPath[path]
	return c, ok
}

// Capabilities returns every planned capability.
func (p *EntityPlan) Capabilities() []*Capability {
	return slices.Clone(p.caps)
}

// Singles returns the single-relationship capabilities.
func (p *EntityPlan) Singles() []*Capability {
	return p.ofKind(Single)
}

// Composites returns the multi-level capabilities.
func (p *EntityPlan) Composites() []*Capability {
	return p.ofKind(Composite)
}

func (p *EntityPlan) ofKind(k Kind) []*Capability {
	var out []*Capability
	for _, c := range p.caps {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

func (p *EntityPlan) add(c *Capability) {
	p.caps = append(p.caps, c)
	p.byPath[c.Path] = c
}

// Plan maps every entity of a catalog to its planned capabilities.
type Plan struct {
	entities map[string]*EntityPlan
	names    []string
}

// Entity returns the plan of name.
func (p *Plan) Entity(name string) (*EntityPlan, bool) {
	ep, ok := p.entities[name]
	return ep, ok
}

// Entities returns the entity plans sorted by entity name.
func (p *Plan) Entities() []*EntityPlan {
	out := make([]*EntityPlan, len(p.names))
	for i, n := range p.names {
		out[i] = p.entities[n]
	}
	return out
}

// Lookup returns the capability of entity at path.
func (p *Plan) Lookup(entity string, path usage.Path) (*Capability, bool) {
	ep, ok := p.entities[entity]
	if !ok {
		return nil, false
	}
	return ep.Lookup(path)
}

// Len returns the number of planned capabilities over all entities.
func (p *Plan) Len() int {
	n := 0
	for _, ep := range p.entities {
		n += len(ep.caps)
	}
	return n
}

type request struct {
	entity string
	path   usage.Path
	origin Origin
}

// NewPlan plans the capabilities of every entity in cat from the usage in set.
//
// Every entity gets its baseline and one single per relationship. Entities
// with observed usage add a composite per tree node deeper than one level.
// Entities without observed usage add, when fallback is enabled, one
// composite R/S for every relationship R and every relationship S of R's
// target. Composites pull in the capability of their target at the path
// tail, so nested shape types always exist.
func NewPlan(ctx context.Context, cat *load.Catalog, set *usage.Set, cfg *Config) (*Plan, diag.List, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if set == nil {
		set = usage.NewSet()
	}
	var ds diag.List
	plan := &Plan{entities: make(map[string]*EntityPlan), names: cat.Names()}
	for _, e := range cat.Entities() {
		ep := &EntityPlan{Entity: e, State: set.State(e.Name), byPath: make(map[usage.Path]*Capability)}
		ep.add(&Capability{
			Entity: e.Name,
			Kind:   Baseline,
			Origin: Unconditional,
			Shape:  shapeName(e.Name, usage.Path{}),
			Nav:    navName(e.Name, usage.Path{}),
		})
		plan.entities[e.Name] = ep
	}

	// Singles reference only baselines, which all exist by now.
	for _, name := range plan.names {
		ep := plan.entities[name]
		for _, f := range ep.Entity.Relationships() {
			target, ok := plan.entities[f.Target]
			if !ok {
				continue
			}
			p := usage.MustPath(f.Name)
			ep.add(&Capability{
				Entity:   name,
				Path:     p,
				Kind:     Single,
				Origin:   Unconditional,
				Shape:    shapeName(name, p),
				Nav:      navName(name, p),
				Op:       opName(p),
				Includes: []Include{{Relationship: f.Name, Target: f.Target, Many: f.Many, Sub: target.Baseline()}},
			})
		}
	}

	var reqs []request
	for _, name := range plan.names {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		ep := plan.entities[name]
		if ue, ok := set.Entity(name); ok && ue.State() == usage.UsageObserved {
			for _, p := range ue.Tree().Paths() {
				if p.Len() >= 2 && p.Len() <= cfg.MaxDepth {
					reqs = append(reqs, request{entity: name, path: p, origin: Observed})
				}
			}
			continue
		}
		if !cfg.Fallback || cfg.MaxDepth < 2 {
			continue
		}
		for _, r := range ep.Entity.Relationships() {
			for _, s := range cat.Relationships(r.Target) {
				reqs = append(reqs, request{entity: name, path: usage.MustPath(r.Name, s), origin: Fallback})
			}
		}
	}

	// Close over the tails of composites, then build shortest paths first so
	// every Sub capability exists before it is referenced.
	reqs = closeRequests(cat, reqs)
	slices.SortStableFunc(reqs, func(a, b request) int { return a.path.Len() - b.path.Len() })
	for _, r := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		ep := plan.entities[r.entity]
		if _, dup := ep.byPath[r.path]; dup {
			continue
		}
		if c, ok := planComposite(plan, ep, r, &ds); ok {
			ep.add(c)
		}
	}
	for _, ep := range plan.entities {
		sortCapabilities(cat, ep)
	}
	ds.Sort()
	return plan, ds, nil
}

// closeRequests appends, for every composite request, the request for the
// target entity at the path tail when that tail is itself multi-level.
func closeRequests(cat *load.Catalog, reqs []request) []request {
	seen := make(map[string]bool, len(reqs))
	key := func(r request) string { return r.entity + "." + r.path.Key() }
	for _, r := range reqs {
		seen[key(r)] = true
	}
	for i := 0; i < len(reqs); i++ {
		r := reqs[i]
		if r.path.Len() < 3 {
			continue
		}
		target, ok := cat.Target(r.entity, r.path.Head())
		if !ok {
			continue
		}
		next := request{entity: target, path: r.path.Tail(), origin: Required}
		if !seen[key(next)] {
			seen[key(next)] = true
			reqs = append(reqs, next)
		}
	}
	return reqs
}

func planComposite(plan *Plan, ep *EntityPlan, r request, ds *diag.List) (*Capability, bool) {
	name := ep.Entity.Name
	f, ok := ep.Entity.Relationship(r.path.Head())
	if !ok {
		return nil, false
	}
	target, ok := plan.entities[f.Target]
	if !ok {
		return nil, false
	}
	sub, ok := target.Lookup(r.path.Tail())
	if !ok {
		ds.Add(diag.Newf(diag.NameCollision, diag.Warning, ep.Entity.Pos,
			"%s of %s needs %s of %s, which was not planned; skipped",
			opName(r.path), name, opName(r.path.Tail()), f.Target).WithEntity(name))
		return nil, false
	}
	op := opName(r.path)
	for _, c := range ep.caps {
		if c.Op == op {
			ds.Add(diag.Newf(diag.NameCollision, diag.Warning, ep.Entity.Pos,
				"%s.%s for path %s collides with the op for path %s; skipped",
				navName(name, usage.Path{}), op, r.path, c.Path).WithEntity(name))
			return nil, false
		}
	}
	return &Capability{
		Entity:   name,
		Path:     r.path,
		Kind:     Composite,
		Origin:   r.origin,
		Shape:    shapeName(name, r.path),
		Nav:      navName(name, r.path),
		Op:       op,
		Includes: []Include{{Relationship: f.Name, Target: f.Target, Many: f.Many, Sub: sub}},
	}, true
}

// sortCapabilities orders the capabilities of ep: baseline, singles in
// declaration order, then composites in pre-order with siblings in
// declaration order.
func sortCapabilities(cat *load.Catalog, ep *EntityPlan) {
	b := usage.NewTreeBuilder()
	for _, c := range ep.caps {
		b.Insert(c.Path)
	}
	order := make(map[usage.Path]int)
	for i, p := range b.Build(usage.DeclarationOrder(cat, ep.Entity.Name)).Paths() {
		order[p] = i
	}
	slices.SortStableFunc(ep.caps, func(a, b *Capability) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return order[a.Path] - order[b.Path]
	})
}

// degrade returns the capabilities kept when an entity fails to render:
// the baseline and its singles.
func (p *EntityPlan) degrade() *EntityPlan {
	out := &EntityPlan{Entity: p.Entity, State: p.State, byPath: make(map[usage.Path]*Capability)}
	for _, c := range p.caps {
		if c.Kind != Composite {
			out.add(c)
		}
	}
	return out
}

// Degrade returns a plan in which the failed entities keep only their
// baseline and singles. Composites of other entities that are typed with a
// dropped capability are dropped too. The failed entities and every entity
// whose capabilities changed are returned in sorted order.
func (p *Plan) Degrade(failed map[string]bool) (*Plan, []string) {
	return p.Prune(failed, nil)
}

// Prune degrades the failed entities like Degrade and removes the dead ones
// from the plan altogether. Capabilities of the remaining entities typed with
// a shape that is no longer planned, singles targeting a dead entity
// included, are dropped. The returned names are the failed entities and the
// remaining entities whose capabilities changed; dead entities are not
// listed.
func (p *Plan) Prune(failed, dead map[string]bool) (*Plan, []string) {
	out := &Plan{entities: make(map[string]*EntityPlan, len(p.entities))}
	for _, name := range p.names {
		if dead[name] {
			continue
		}
		out.names = append(out.names, name)
		ep := p.entities[name]
		if failed[name] {
			ep = ep.degrade()
		}
		out.entities[name] = ep
	}
	for changed := true; changed; {
		changed = false
		for _, name := range out.names {
			ep := out.entities[name]
			kept := &EntityPlan{Entity: ep.Entity, State: ep.State, byPath: make(map[usage.Path]*Capability)}
			for _, c := range ep.caps {
				if c.Kind != Baseline && !out.has(c.Includes[0].Sub) {
					continue
				}
				kept.add(c)
			}
			if len(kept.caps) != len(ep.caps) {
				out.entities[name] = kept
				changed = true
			}
		}
	}
	var names []string
	for _, name := range out.names {
		if failed[name] || len(out.entities[name].caps) != len(p.entities[name].caps) {
			names = append(names, name)
		}
	}
	return out, names
}

// has reports whether c is still planned.
func (p *Plan) has(c *Capability) bool {
	if c == nil {
		return false
	}
	got, ok := p.Lookup(c.Entity, c.Path)
	return ok && got == c
}
