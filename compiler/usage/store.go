package usage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/navgen/compiler/chain"
	"github.com/syssam/navgen/compiler/diag"
)

// DefaultStorePath is where the CLI keeps the last usage snapshot, relative
// to the module root.
const DefaultStorePath = ".navgen/usage.msgpack"

// storeVersion is bumped whenever the encoded layout changes.
const storeVersion = 1

type storedSet struct {
	Version  int            `msgpack:"v"`
	Hash     uint64         `msgpack:"h"`
	Entities []storedEntity `msgpack:"e"`
}

type storedEntity struct {
	Name  string   `msgpack:"n"`
	Paths []string `msgpack:"p,omitempty"`
}

// Summary is the exported view of one entity's usage, used by reports.
type Summary struct {
	Entity string   `json:"entity" yaml:"entity"`
	State  string   `json:"state" yaml:"state"`
	Paths  []string `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// Summaries lists every entity with its state and node paths.
func (s *Set) Summaries() []Summary {
	out := make([]Summary, 0, len(s.entities))
	for _, e := range s.entities {
		sum := Summary{Entity: e.name, State: e.state.String()}
		for _, p := range e.tree.Paths() {
			sum.Paths = append(sum.Paths, p.Key())
		}
		out = append(out, sum)
	}
	return out
}

// Usages turns the leaves of every observed tree back into chain usages
// positioned at pos, so a stored set can be aggregated again against the
// current entity declarations.
func (s *Set) Usages(pos diag.Position) []chain.Usage {
	var out []chain.Usage
	for _, e := range s.entities {
		for _, p := range e.tree.Leaves() {
			out = append(out, chain.Usage{Entity: e.name, Path: p.Segments(), Pos: pos, Chain: pos})
		}
	}
	return out
}

// Marshal encodes s with msgpack.
func Marshal(s *Set) ([]byte, error) {
	st := storedSet{Version: storeVersion, Hash: s.Hash()}
	for _, e := range s.entities {
		se := storedEntity{Name: e.name}
		for _, p := range e.tree.Leaves() {
			se.Paths = append(se.Paths, p.Key())
		}
		st.Entities = append(st.Entities, se)
	}
	return msgpack.Marshal(&st)
}

// Unmarshal decodes a set encoded by Marshal. Trees are rebuilt in lexical
// order.
func Unmarshal(data []byte) (*Set, error) {
	var st storedSet
	if err := msgpack.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("usage: decoding snapshot: %w", err)
	}
	if st.Version != storeVersion {
		return nil, fmt.Errorf("usage: snapshot version %d, want %d", st.Version, storeVersion)
	}
	entities := make([]Entity, 0, len(st.Entities))
	for _, se := range st.Entities {
		b := NewTreeBuilder()
		for _, key := range se.Paths {
			p, err := ParsePath(key)
			if err != nil {
				return nil, err
			}
			b.Insert(p)
		}
		entities = append(entities, Observed(se.Name, b.Build(nil)))
	}
	set := NewSet(entities...)
	if set.Hash() != st.Hash {
		return nil, fmt.Errorf("usage: snapshot hash mismatch")
	}
	return set, nil
}

// Store persists a Set on disk.
type Store struct {
	path string
}

// NewStore returns a store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored set. It returns nil and no error when nothing has
// been stored yet.
func (s *Store) Load() (*Set, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Save writes set, replacing any previous snapshot. An identical snapshot
// is left untouched.
func (s *Store) Save(set *Set) error {
	data, err := Marshal(set)
	if err != nil {
		return err
	}
	if prev, err := os.ReadFile(s.path); err == nil && bytes.Equal(prev, data) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".usage-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
