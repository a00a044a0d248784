package gen

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/navgen/compiler/diag"
	"github.com/syssam/navgen/compiler/load"
	"github.com/syssam/navgen/compiler/usage"
)

// File is one generated source file.
type File struct {
	// Dir is the directory of the package the file belongs to.
	Dir     string
	PkgPath string
	Name    string
	// Owner is the entity or companion the file was rendered for.
	Owner  string
	Source []byte
}

// Path returns the file path.
func (f File) Path() string {
	return filepath.Join(f.Dir, f.Name)
}

// Result is the output of one generation run.
type Result struct {
	Files       []File
	Plan        *Plan
	Diagnostics diag.List
	// Degraded lists the entities rendered with baseline and singles only.
	Degraded []string
}

// Generator plans capabilities and renders navigation and projection files
// with Jennifer, one entity or companion per worker.
type Generator struct {
	cfg         *Config
	cat         *load.Catalog
	shapes      ShapeEmitter
	projections ProjectionEmitter
}

// NewGenerator creates a generator over the entities and companions of cat.
// A nil cfg uses DefaultConfig.
func NewGenerator(cfg *Config, cat *load.Catalog) *Generator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Generator{
		cfg:         cfg,
		cat:         cat,
		shapes:      NewShapeEmitter(cfg),
		projections: NewProjectionEmitter(cfg, cat),
	}
}

// WithShapeEmitter replaces the emitter of navigation files.
func (g *Generator) WithShapeEmitter(e ShapeEmitter) *Generator {
	if e != nil {
		g.shapes = e
	}
	return g
}

// WithProjectionEmitter replaces the emitter of projection files.
func (g *Generator) WithProjectionEmitter(e ProjectionEmitter) *Generator {
	if e != nil {
		g.projections = e
	}
	return g
}

// Config returns the generation settings.
func (g *Generator) Config() *Config {
	return g.cfg
}

// Generate renders the files for the usage in set.
//
// An entity whose rendering panics or fails is rendered again with only its
// baseline and singles, and reported with an EntityFailed diagnostic;
// composites of other entities typed with its dropped shapes are dropped as
// well. An entity failing again gets no file, and the shapes and ops of other
// entities referring to it are dropped so the emitted packages still compile.
// The error result is reserved for cancellation.
func (g *Generator) Generate(ctx context.Context, set *usage.Set) (*Result, error) {
	plan, ds, err := NewPlan(ctx, g.cat, set, g.cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Diagnostics: ds}

	files := make(map[string]File)
	failed := make(map[string]bool)
	dead := make(map[string]bool)
	todo := plan.names
	cur := plan
	for len(todo) > 0 {
		out, errs, err := g.renderEntities(ctx, cur, todo)
		if err != nil {
			return nil, err
		}
		for name, f := range out {
			files[name] = f
		}
		var retry bool
		for _, name := range todo {
			err, ok := errs[name]
			if !ok {
				continue
			}
			ep, _ := cur.Entity(name)
			if failed[name] {
				dead[name] = true
				retry = true
				delete(files, name)
				res.Diagnostics.Add(diag.Newf(diag.EntityFailed, diag.Error, ep.Entity.Pos,
					"generating %s failed even without composite shapes; no file emitted: %v", name, err).WithEntity(name))
				continue
			}
			failed[name] = true
			retry = true
			res.Diagnostics.Add(diag.Newf(diag.EntityFailed, diag.Error, ep.Entity.Pos,
				"generating %s failed; emitted baseline and single-relationship shapes only: %v", name, err).WithEntity(name))
		}
		if !retry {
			break
		}
		cur, todo = plan.Prune(failed, dead)
	}
	res.Plan = cur
	for name := range failed {
		res.Degraded = append(res.Degraded, name)
	}
	slices.Sort(res.Degraded)
	for _, f := range files {
		res.Files = append(res.Files, f)
	}

	pfiles, pds, err := g.renderProjections(ctx, cur)
	if err != nil {
		return nil, err
	}
	res.Files = append(res.Files, pfiles...)
	res.Diagnostics.Append(pds)

	slices.SortFunc(res.Files, func(a, b File) int {
		return strings.Compare(a.Path(), b.Path())
	})
	res.Diagnostics.Sort()
	return res, nil
}

// renderEntities renders the navigation files of names in parallel.
func (g *Generator) renderEntities(ctx context.Context, plan *Plan, names []string) (map[string]File, map[string]error, error) {
	var (
		mu    sync.Mutex
		files = make(map[string]File, len(names))
		errs  = make(map[string]error)
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for _, name := range names {
		ep, ok := plan.Entity(name)
		if !ok {
			continue
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := g.renderEntity(plan, ep)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[name] = err
				return nil
			}
			files[name] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return files, errs, nil
}

func (g *Generator) renderEntity(plan *Plan, ep *EntityPlan) (_ File, err error) {
	e := ep.Entity
	defer func() {
		if r := recover(); r != nil {
			err = NewEntityError(e.Name, "", "emitter panicked", fmt.Errorf("%v", r))
		}
	}()
	jf, err := g.shapes.EmitShapes(plan, ep)
	if err != nil {
		return File{}, err
	}
	name := fileName(e.Name, g.cfg.NavSuffix)
	src, err := render(jf)
	if err != nil {
		return File{}, NewGenerationError("shape", name, "rendering "+e.Name, err)
	}
	return File{Dir: e.Dir, PkgPath: e.PkgPath, Name: name, Owner: e.Name, Source: src}, nil
}

// renderProjections renders every companion of the catalog against plan.
func (g *Generator) renderProjections(ctx context.Context, plan *Plan) ([]File, diag.List, error) {
	comps := g.cat.Companions()
	var (
		mu    sync.Mutex
		files []File
		ds    diag.List
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for _, cp := range comps {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, pds, err := g.renderProjection(plan, cp)
			mu.Lock()
			defer mu.Unlock()
			ds.Append(pds)
			if err != nil {
				ds.Add(diag.Newf(diag.EntityFailed, diag.Error, cp.Pos,
					"generating projection %s failed; no file emitted: %v", cp.Name, err).WithEntity(cp.Entity))
				return nil
			}
			files = append(files, f)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return files, ds, nil
}

func (g *Generator) renderProjection(plan *Plan, cp *load.Companion) (_ File, _ diag.List, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewEntityError(cp.Entity, "", "projection emitter panicked", fmt.Errorf("%v", r))
		}
	}()
	jf, ds, err := g.projections.EmitProjection(plan, cp)
	if err != nil {
		return File{}, ds, err
	}
	name := fileName(cp.Name, g.cfg.ProjectionSuffix)
	src, err := render(jf)
	if err != nil {
		return File{}, ds, NewGenerationError("projection", name, "rendering "+cp.Name, err)
	}
	return File{Dir: cp.Dir, PkgPath: cp.PkgPath, Name: name, Owner: cp.Name, Source: src}, ds, nil
}

func render(f *jen.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
