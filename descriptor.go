package navgen

// Descriptor describes one generated shape: which entity it belongs to and
// which relationships it guarantees to be present. Generated packages expose
// their descriptors through a Descriptors function.
type Descriptor struct {
	// Entity is the name of the root entity.
	Entity string
	// Shape is the name of the generated shape type.
	Shape string
	// Path is the slash separated relationship path the shape was planned
	// for. Empty for the baseline shape.
	Path string
	// Edges lists the included relationships.
	Edges []Edge
}

// Edge is a relationship present in a Descriptor.
type Edge struct {
	Name   string
	Target string
	Many   bool
	// Sub is the descriptor of the target shape. Nil means the target's
	// baseline shape.
	Sub *Descriptor
}

// IsBaseline reports whether d describes a shape with scalars only.
func (d Descriptor) IsBaseline() bool {
	return len(d.Edges) == 0
}

// Include returns the relationships d guarantees, as an Include.
func (d Descriptor) Include() Include {
	var inc Include
	for _, e := range d.Edges {
		var sub Include
		if e.Sub != nil {
			sub = e.Sub.Include()
		}
		inc = inc.With(e.Name, sub)
	}
	return inc
}

// Has reports whether d guarantees the nested relationship path.
func (d Descriptor) Has(path ...string) bool {
	return d.Include().Has(path...)
}

// Satisfies reports whether every relationship required by inc is guaranteed by d.
func (d Descriptor) Satisfies(inc Include) bool {
	got := d.Include()
	for _, p := range inc.Paths() {
		if !got.Has(splitPath(p)...) {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == PathSeparator[0] {
			segs = append(segs, p[start:i])
			start = i + 1
		}
	}
	return append(segs, p[start:])
}
