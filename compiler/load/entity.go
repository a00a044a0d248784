package load

import (
	"slices"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/syssam/navgen/compiler/diag"
)

// Kind separates scalar fields from relationships.
type Kind uint8

const (
	Scalar Kind = iota
	Relationship
)

// String returns the kind name.
func (k Kind) String() string {
	if k == Relationship {
		return "relationship"
	}
	return "scalar"
}

// Entity is a struct the generator emits navigation code for.
type Entity struct {
	Name    string        `json:"name"`
	PkgPath string        `json:"pkg_path"`
	PkgName string        `json:"pkg_name"`
	Dir     string        `json:"dir"`
	Fields  []*Field      `json:"fields,omitempty"`
	Pos     diag.Position `json:"-"`
}

// Field describes one exported struct field of an entity or companion.
// Fields are read-only once discovery returns.
type Field struct {
	Name string   `json:"name"`
	Type *TypeRef `json:"type"`
	Kind Kind     `json:"kind"`
	// Elem is the element type name once a slice and a pointer are stripped.
	Elem string `json:"elem,omitempty"`
	// Many reports a slice.
	Many bool `json:"many,omitempty"`
	// Pointer reports a pointer element.
	Pointer bool `json:"pointer,omitempty"`
	// Target is the entity a relationship reaches. On companion fields it is
	// the entity mapped by the referenced companion.
	Target string `json:"target,omitempty"`
	// Companion is the companion type a companion field refers to.
	Companion string        `json:"companion,omitempty"`
	Tag       string        `json:"tag,omitempty"`
	Pos       diag.Position `json:"-"`
}

// Nillable reports whether the field can hold nil.
func (f *Field) Nillable() bool {
	return f.Many || f.Pointer || f.Type.Kind == KindMap
}

// IsRelationship reports whether the field references another entity.
func (f *Field) IsRelationship() bool {
	return f.Kind == Relationship
}

// Field returns the field with the given name.
func (e *Entity) Field(name string) (*Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Relationship returns the relationship field with the given name.
func (e *Entity) Relationship(name string) (*Field, bool) {
	f, ok := e.Field(name)
	if !ok || !f.IsRelationship() {
		return nil, false
	}
	return f, true
}

// Relationships returns the relationship fields in declaration order.
func (e *Entity) Relationships() []*Field {
	var out []*Field
	for _, f := range e.Fields {
		if f.IsRelationship() {
			out = append(out, f)
		}
	}
	return out
}

// Scalars returns the scalar fields in declaration order.
func (e *Entity) Scalars() []*Field {
	var out []*Field
	for _, f := range e.Fields {
		if !f.IsRelationship() {
			out = append(out, f)
		}
	}
	return out
}

// Companion is a result struct annotated as the projection target of an entity.
type Companion struct {
	Name    string        `json:"name"`
	PkgPath string        `json:"pkg_path"`
	PkgName string        `json:"pkg_name"`
	Dir     string        `json:"dir"`
	Entity  string        `json:"entity"`
	Fields  []*Field      `json:"fields,omitempty"`
	Pos     diag.Position `json:"-"`
}

// Catalog holds every entity and companion of a snapshot.
type Catalog struct {
	entities   []*Entity
	byName     map[string]*Entity
	companions []*Companion
}

// NewCatalog returns a catalog over the given declarations. Entities are
// indexed by name; the first declaration of a name wins.
func NewCatalog(entities []*Entity, companions []*Companion) *Catalog {
	c := &Catalog{byName: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if _, dup := c.byName[e.Name]; dup {
			continue
		}
		c.byName[e.Name] = e
		c.entities = append(c.entities, e)
	}
	slices.SortFunc(c.entities, func(a, b *Entity) int { return strings.Compare(a.Name, b.Name) })
	c.companions = slices.Clone(companions)
	slices.SortFunc(c.companions, func(a, b *Companion) int {
		if c := strings.Compare(a.PkgPath, b.PkgPath); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return c
}

// Entities returns the entities sorted by name.
func (c *Catalog) Entities() []*Entity {
	return slices.Clone(c.entities)
}

// Entity returns the entity with the given name.
func (c *Catalog) Entity(name string) (*Entity, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// Companions returns the companions sorted by package and name.
func (c *Catalog) Companions() []*Companion {
	return slices.Clone(c.companions)
}

// Companion returns the companion declared as name in pkgPath.
func (c *Catalog) Companion(pkgPath, name string) (*Companion, bool) {
	for _, cp := range c.companions {
		if cp.PkgPath == pkgPath && cp.Name == name {
			return cp, true
		}
	}
	return nil, false
}

// Names returns the entity names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entities))
	for i, e := range c.entities {
		names[i] = e.Name
	}
	return names
}

// Relationships returns the relationship names of entity in declaration order.
func (c *Catalog) Relationships(entity string) []string {
	e, ok := c.byName[entity]
	if !ok {
		return nil
	}
	var names []string
	for _, f := range e.Relationships() {
		names = append(names, f.Name)
	}
	return names
}

// Target returns the entity reached through relationship on entity.
func (c *Catalog) Target(entity, relationship string) (string, bool) {
	e, ok := c.byName[entity]
	if !ok {
		return "", false
	}
	f, ok := e.Relationship(relationship)
	if !ok {
		return "", false
	}
	return f.Target, true
}

// Hash identifies the structure of the catalog: entity names, field names,
// field types and companion bindings.
func (c *Catalog) Hash() uint64 {
	h := xxh3.New()
	for _, e := range c.entities {
		_, _ = h.WriteString("E" + e.PkgPath + "." + e.Name + "\n")
		for _, f := range e.Fields {
			_, _ = h.WriteString(f.Name + " " + f.Type.String() + " " + f.Kind.String() + "\n")
		}
	}
	for _, cp := range c.companions {
		_, _ = h.WriteString("C" + cp.PkgPath + "." + cp.Name + "->" + cp.Entity + "\n")
		for _, f := range cp.Fields {
			_, _ = h.WriteString(f.Name + " " + f.Type.String() + "\n")
		}
	}
	return h.Sum64()
}
