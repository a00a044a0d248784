package gen

import (
	"go/token"
	"strconv"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/navgen/compiler/usage"
)

var rules = ruleset()

func ruleset() *inflect.Ruleset {
	rules := inflect.NewDefaultRuleset()
	for _, w := range []string{"API", "ID", "IP", "JSON", "SKU", "SQL", "URL", "UUID"} {
		rules.AddAcronym(w)
	}
	return rules
}

// opName is the builder method adding path: With plus the joined segments.
func opName(p usage.Path) string {
	return "With" + strings.Join(p.Segments(), "")
}

// shapeName is the shape type of entity at p.
func shapeName(entity string, p usage.Path) string {
	if p.IsZero() {
		return entity + "Shape"
	}
	return entity + opName(p)
}

// navName is the builder type of entity at p.
func navName(entity string, p usage.Path) string {
	if p.IsZero() {
		return entity + "Nav"
	}
	return entity + opName(p) + "Nav"
}

// descriptorName is the variable holding the descriptor of a shape.
func descriptorName(shape string) string {
	return shape + "Descriptor"
}

func queryName(entity string) string {
	return "Query" + entity
}

func descriptorsFunc(entity string) string {
	return entity + "Descriptors"
}

func projectName(companion string) string {
	return "Project" + companion
}

func projectionVar(companion string) string {
	return companion + "Projection"
}

// fileName returns the snake_case file name of a type with the given suffix.
func fileName(typ, suffix string) string {
	return rules.Underscore(typ) + suffix
}

// loopVar returns a local variable name for one element of the collection
// field, e.g. "line" for "Lines".
func loopVar(field string) string {
	name := rules.CamelizeDownFirst(rules.Singularize(field))
	if name == "" {
		name = "item"
	}
	if token.Lookup(name).IsKeyword() {
		return "_" + name
	}
	return name
}

// scope hands out unique local variable names within one function.
type scope struct {
	used map[string]int
}

func newScope(reserved ...string) *scope {
	s := &scope{used: make(map[string]int)}
	for _, r := range reserved {
		s.used[r] = 1
	}
	return s
}

func (s *scope) name(base string) string {
	name := base
	for i := 2; s.used[name] > 0; i++ {
		name = base + strconv.Itoa(i)
	}
	s.used[name]++
	return name
}
