package load

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/tools/go/packages"

	"github.com/syssam/navgen/compiler/diag"
)

// Snapshot is an immutable view of the Go sources a compilation reads.
// Every stage of the pipeline works from one Snapshot.
type Snapshot struct {
	fset  *token.FileSet
	files []*File
	hash  uint64
	// Errors holds package errors reported while loading. They do not stop
	// the pipeline: calling code often fails to type-check before its
	// navigation code has been generated.
	Errors []error
}

// File is one parsed source file of a Snapshot.
type File struct {
	Path    string
	PkgPath string
	PkgName string
	Syntax  *ast.File
	// Info is the type information of the file's package, nil when the
	// snapshot was built from syntax only.
	Info *types.Info
	// Generated reports whether the file carries a "Code generated" header.
	Generated bool
}

// Dir returns the directory holding the file.
func (f *File) Dir() string {
	return filepath.Dir(f.Path)
}

// Source is an in-memory Go file handed to Parse.
type Source struct {
	PkgPath string
	Path    string
	Content []byte
}

// LoadError is returned when packages cannot be loaded or parsed.
type LoadError struct {
	Patterns []string
	Err      error
}

// Error returns the error string.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load: loading %s: %v", strings.Join(e.Patterns, " "), e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// loadMode is the go/packages mode used by Load.
const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// Load loads the packages matching patterns from dir with type information.
func Load(ctx context.Context, dir string, buildFlags []string, patterns ...string) (*Snapshot, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Context:    ctx,
		Dir:        dir,
		Mode:       loadMode,
		BuildFlags: buildFlags,
		Fset:       fset,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, &LoadError{Patterns: patterns, Err: err}
	}
	s := &Snapshot{fset: fset}
	h := xxh3.New()
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			s.Errors = append(s.Errors, e)
		}
		for _, syntax := range pkg.Syntax {
			name := fset.Position(syntax.Package).Filename
			if seen[name] {
				continue
			}
			seen[name] = true
			s.files = append(s.files, &File{
				Path:      name,
				PkgPath:   pkg.PkgPath,
				PkgName:   pkg.Name,
				Syntax:    syntax,
				Info:      pkg.TypesInfo,
				Generated: ast.IsGenerated(syntax),
			})
		}
	}
	if len(s.files) == 0 {
		return nil, &LoadError{Patterns: patterns, Err: fmt.Errorf("no Go files matched")}
	}
	s.sortFiles()
	for _, f := range s.files {
		content, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, &LoadError{Patterns: patterns, Err: err}
		}
		writeHash(h, f.Path, content)
	}
	s.hash = h.Sum64()
	return s, nil
}

// Parse builds a syntax-only Snapshot from in-memory sources.
func Parse(sources ...Source) (*Snapshot, error) {
	fset := token.NewFileSet()
	s := &Snapshot{fset: fset}
	sorted := slices.Clone(sources)
	slices.SortFunc(sorted, func(a, b Source) int { return strings.Compare(a.Path, b.Path) })
	h := xxh3.New()
	for _, src := range sorted {
		syntax, err := parser.ParseFile(fset, src.Path, src.Content, parser.ParseComments)
		if err != nil {
			return nil, &LoadError{Patterns: []string{src.Path}, Err: err}
		}
		s.files = append(s.files, &File{
			Path:      src.Path,
			PkgPath:   src.PkgPath,
			PkgName:   syntax.Name.Name,
			Syntax:    syntax,
			Generated: ast.IsGenerated(syntax),
		})
		writeHash(h, src.Path, src.Content)
	}
	s.hash = h.Sum64()
	return s, nil
}

func writeHash(h *xxh3.Hasher, name string, content []byte) {
	_, _ = h.WriteString(name)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(content)
	_, _ = h.Write([]byte{0})
}

func (s *Snapshot) sortFiles() {
	slices.SortFunc(s.files, func(a, b *File) int { return strings.Compare(a.Path, b.Path) })
}

// Files returns the files of the snapshot sorted by path.
func (s *Snapshot) Files() []*File {
	return slices.Clone(s.files)
}

// Fset returns the file set positions are relative to.
func (s *Snapshot) Fset() *token.FileSet {
	return s.fset
}

// Position converts p into a diagnostic position.
func (s *Snapshot) Position(p token.Pos) diag.Position {
	if !p.IsValid() {
		return diag.Position{}
	}
	return diag.PositionOf(s.fset.Position(p))
}

// Hash identifies the content of the snapshot. Two snapshots over identical
// files have the same hash.
func (s *Snapshot) Hash() uint64 {
	return s.hash
}

// Typed reports whether the snapshot carries type information.
func (s *Snapshot) Typed() bool {
	for _, f := range s.files {
		if f.Info != nil {
			return true
		}
	}
	return false
}
