package usage

import (
	"slices"
	"strings"

	"github.com/zeebo/xxh3"
)

// State is the usage state of one entity.
type State uint8

const (
	// NoUsageObserved means no chain in the analyzed code navigates from the
	// entity. Generation falls back to a bounded default set of shapes.
	NoUsageObserved State = iota
	// UsageObserved means at least one path was observed; the entity's Tree
	// drives generation.
	UsageObserved
)

// String returns the state name.
func (s State) String() string {
	if s == UsageObserved {
		return "usage-observed"
	}
	return "no-usage-observed"
}

// Entity is the usage of one entity.
type Entity struct {
	name  string
	state State
	tree  Tree
}

// NoUsage returns an entity in the NoUsageObserved state.
func NoUsage(name string) Entity {
	return Entity{name: name}
}

// Observed returns an entity in the UsageObserved state. An empty tree yields
// NoUsageObserved.
func Observed(name string, tree Tree) Entity {
	if tree.Empty() {
		return NoUsage(name)
	}
	return Entity{name: name, state: UsageObserved, tree: tree}
}

// Name returns the entity name.
func (e Entity) Name() string { return e.name }

// State returns the usage state.
func (e Entity) State() State { return e.state }

// Tree returns the observed paths. It is empty for NoUsageObserved.
func (e Entity) Tree() Tree { return e.tree }

// Equal reports whether e and o have the same name, state and tree.
func (e Entity) Equal(o Entity) bool {
	return e.name == o.name && e.state == o.state && e.tree.Equal(o.tree)
}

// Set maps entity names to their usage. It is built once per snapshot and
// never modified.
type Set struct {
	entities []Entity
	index    map[string]int
}

// NewSet returns a set over entities. A later entity replaces an earlier one
// with the same name.
func NewSet(entities ...Entity) *Set {
	byName := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byName[e.name] = e
	}
	s := &Set{index: make(map[string]int, len(byName))}
	for _, e := range byName {
		s.entities = append(s.entities, e)
	}
	slices.SortFunc(s.entities, func(a, b Entity) int { return strings.Compare(a.name, b.name) })
	for i, e := range s.entities {
		s.index[e.name] = i
	}
	return s
}

// Entity returns the usage of name.
func (s *Set) Entity(name string) (Entity, bool) {
	i, ok := s.index[name]
	if !ok {
		return Entity{}, false
	}
	return s.entities[i], true
}

// State returns the usage state of name; unknown entities report NoUsageObserved.
func (s *Set) State(name string) State {
	e, _ := s.Entity(name)
	return e.state
}

// Entities returns every entity sorted by name.
func (s *Set) Entities() []Entity {
	return slices.Clone(s.entities)
}

// Names returns the entity names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, len(s.entities))
	for i, e := range s.entities {
		names[i] = e.name
	}
	return names
}

// Len returns the number of entities.
func (s *Set) Len() int {
	return len(s.entities)
}

// Observed returns the names of entities in the UsageObserved state.
func (s *Set) Observed() []string {
	var names []string
	for _, e := range s.entities {
		if e.state == UsageObserved {
			names = append(names, e.name)
		}
	}
	return names
}

// Equal reports whether s and o hold the same entities with equal usage.
func (s *Set) Equal(o *Set) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.entities) != len(o.entities) {
		return false
	}
	for i := range s.entities {
		if !s.entities[i].Equal(o.entities[i]) {
			return false
		}
	}
	return true
}

// Hash returns a structural hash of the set.
func (s *Set) Hash() uint64 {
	h := xxh3.New()
	var buf [8]byte
	for _, e := range s.entities {
		_, _ = h.WriteString(e.name)
		_, _ = h.Write([]byte{0, byte(e.state)})
		th := e.tree.Hash()
		for i := range buf {
			buf[i] = byte(th >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
