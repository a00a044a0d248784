// Package compiler wires the stages of navigation code generation into a
// Pipeline: entity discovery, chain discovery, usage aggregation, planning
// and rendering, all over one load.Snapshot.
package compiler

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/syssam/navgen/compiler/chain"
	"github.com/syssam/navgen/compiler/diag"
	"github.com/syssam/navgen/compiler/gen"
	"github.com/syssam/navgen/compiler/load"
	"github.com/syssam/navgen/compiler/usage"
)

// Pipeline runs the generation stages. Analyses are cached by input hash,
// so running a Pipeline again over unchanged sources skips discovery. A
// Pipeline is safe for concurrent use.
type Pipeline struct {
	log        *zap.Logger
	genCfg     *gen.Config
	terminals  []string
	entityPkgs []string
	store      *usage.Store
	cache      *Cache
	cacheSize  int
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) error {
		if l == nil {
			return gen.NewConfigError("Logger", nil, "cannot be nil")
		}
		p.log = l
		return nil
	}
}

// WithCache shares c between pipelines.
func WithCache(c *Cache) Option {
	return func(p *Pipeline) error {
		p.cache = c
		return nil
	}
}

// WithCacheSize sets the number of cached analyses. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			return gen.NewConfigError("CacheSize", n, "cannot be negative")
		}
		p.cacheSize = n
		return nil
	}
}

// WithStore completes the discovered usage with the usage stored in s for
// entities the snapshot does not navigate.
func WithStore(s *usage.Store) Option {
	return func(p *Pipeline) error {
		p.store = s
		return nil
	}
}

// WithGenOptions applies options to the generation config.
func WithGenOptions(opts ...gen.Option) Option {
	return func(p *Pipeline) error {
		return p.genCfg.Apply(opts...)
	}
}

// WithTerminals sets the method names that end a navigation chain.
func WithTerminals(names ...string) Option {
	return func(p *Pipeline) error {
		p.terminals = slices.Clone(names)
		return nil
	}
}

// WithEntityPackages marks every exported struct of the given packages as
// an entity.
func WithEntityPackages(paths ...string) Option {
	return func(p *Pipeline) error {
		p.entityPkgs = slices.Clone(paths)
		return nil
	}
}

// New returns a Pipeline configured by opts. Every option is applied and
// the failures are joined.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		log:       zap.NewNop(),
		genCfg:    gen.DefaultConfig(),
		cacheSize: DefaultCacheSize,
	}
	var errs []error
	for _, opt := range opts {
		if err := opt(p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if p.cache == nil && p.cacheSize > 0 {
		c, err := NewCache(p.cacheSize)
		if err != nil {
			return nil, err
		}
		p.cache = c
	}
	return p, nil
}

// Config returns the generation config.
func (p *Pipeline) Config() *gen.Config {
	return p.genCfg
}

// Cache returns the analysis cache, nil when caching is disabled.
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Analysis is what discovery and aggregation found in a snapshot.
type Analysis struct {
	Catalog *load.Catalog
	// Discovered is the usage found in the snapshot alone.
	Discovered *usage.Set
	// Usage is Discovered completed with stored usage. Generation runs
	// against it.
	Usage *usage.Set
	// Restored lists the entities whose usage came from the store.
	Restored    []string
	Diagnostics diag.List
}

// Result is the outcome of one Run.
type Result struct {
	Analysis   *Analysis
	Generation *gen.Result
	// CacheHit reports whether the analysis was served from the cache.
	CacheHit bool
	// Diagnostics holds the diagnostics of every stage, sorted.
	Diagnostics diag.List
}

// Analyze discovers entities and navigation chains in snap and aggregates
// them into usage. The boolean result reports a cache hit.
func (p *Pipeline) Analyze(ctx context.Context, snap *load.Snapshot) (*Analysis, bool, error) {
	stored := p.loadStored()
	key := p.key(snap, stored)
	log := p.log.With(zap.String("snapshot", fmt.Sprintf("%016x", snap.Hash())))
	if p.cache != nil {
		if a, ok := p.cache.Get(key); ok {
			log.Debug("analysis cache hit", zap.Bool("cache_hit", true))
			return a, true, nil
		}
	}
	for _, err := range snap.Errors {
		log.Debug("package error", zap.Error(err))
	}

	cat, ds, err := load.Discover(ctx, snap, load.Options{EntityPackages: p.entityPkgs})
	if err != nil {
		return nil, false, err
	}
	log.Debug("entities discovered", zap.Strings("entities", cat.Names()), zap.Int("companions", len(cat.Companions())))

	found, err := chain.Discover(ctx, snap, chain.Options{
		Terminals: p.terminals,
		IsEntity: func(name string) bool {
			_, ok := cat.Entity(name)
			return ok
		},
		Workers: p.genCfg.Workers,
	})
	if err != nil {
		return nil, false, err
	}
	ds.Append(found.Diagnostics)
	log.Debug("chains discovered", zap.Int("usages", len(found.Usages)))

	set, ads, err := usage.Aggregate(ctx, cat, found.Usages, usage.WithMaxDepth(p.genCfg.MaxDepth))
	if err != nil {
		return nil, false, err
	}
	a := &Analysis{Catalog: cat, Discovered: set, Usage: set}

	restore, restored := p.restore(cat, set, stored)
	if len(restore) > 0 {
		full, rds, err := usage.Aggregate(ctx, cat, append(slices.Clone(found.Usages), restore...), usage.WithMaxDepth(p.genCfg.MaxDepth))
		if err != nil {
			return nil, false, err
		}
		a.Usage = full
		a.Restored = restored
		ads = rds
		log.Debug("usage restored from store", zap.Strings("entities", restored), zap.String("file", p.store.Path()))
	}
	ds.Append(ads)
	ds.Sort()
	a.Diagnostics = ds

	for _, e := range a.Usage.Entities() {
		if e.State() == usage.UsageObserved {
			log.Debug("usage", zap.String("entity", e.Name()), zap.Stringer("paths", e.Tree()))
		}
	}
	if p.cache != nil {
		p.cache.Add(key, a)
	}
	return a, false, nil
}

// Run analyzes snap and renders the navigation and projection files.
// Files are returned, not written.
func (p *Pipeline) Run(ctx context.Context, snap *load.Snapshot) (*Result, error) {
	a, hit, err := p.Analyze(ctx, snap)
	if err != nil {
		return nil, err
	}
	gr, err := gen.NewGenerator(p.genCfg, a.Catalog).Generate(ctx, a.Usage)
	if err != nil {
		return nil, err
	}
	for _, name := range gr.Degraded {
		p.log.Warn("entity degraded to baseline and single shapes", zap.String("entity", name))
	}
	res := &Result{Analysis: a, Generation: gr, CacheHit: hit}
	res.Diagnostics = append(res.Diagnostics, a.Diagnostics...)
	res.Diagnostics.Append(gr.Diagnostics)
	res.Diagnostics.Sort()
	p.log.Debug("generation finished",
		zap.Int("files", len(gr.Files)),
		zap.Int("capabilities", gr.Plan.Len()),
		zap.Bool("cache_hit", hit),
		zap.String("diagnostics", diag.Summary(res.Diagnostics)))
	return res, nil
}

// SaveUsage stores the usage discovered by a, so later runs over packages
// that do not contain the calling code can reuse it. It is a no-op without
// a store.
func (p *Pipeline) SaveUsage(a *Analysis) error {
	if p.store == nil {
		return nil
	}
	if err := p.store.Save(a.Discovered); err != nil {
		return fmt.Errorf("navgen: save usage to %s: %w", p.store.Path(), err)
	}
	p.log.Debug("usage saved", zap.String("file", p.store.Path()), zap.Strings("observed", a.Discovered.Observed()))
	return nil
}

// loadStored reads the usage store. An unreadable store is logged and
// treated as empty.
func (p *Pipeline) loadStored() *usage.Set {
	if p.store == nil {
		return nil
	}
	set, err := p.store.Load()
	if err != nil {
		p.log.Warn("ignoring unreadable usage store", zap.String("file", p.store.Path()), zap.Error(err))
		return nil
	}
	return set
}

// restore returns the stored usages of entities that are declared in cat
// but not navigated in the current snapshot.
func (p *Pipeline) restore(cat *load.Catalog, set, stored *usage.Set) ([]chain.Usage, []string) {
	if stored == nil {
		return nil, nil
	}
	pos := diag.Position{File: p.store.Path()}
	var (
		out   []chain.Usage
		names []string
	)
	for _, u := range stored.Usages(pos) {
		if _, ok := cat.Entity(u.Entity); !ok || set.State(u.Entity) == usage.UsageObserved {
			continue
		}
		out = append(out, u)
		if !slices.Contains(names, u.Entity) {
			names = append(names, u.Entity)
		}
	}
	slices.Sort(names)
	return out, names
}

// key hashes every input of Analyze.
func (p *Pipeline) key(snap *load.Snapshot, stored *usage.Set) uint64 {
	h := xxh3.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	put(snap.Hash())
	put(uint64(p.genCfg.MaxDepth))
	if stored != nil {
		put(stored.Hash())
	}
	for _, group := range [][]string{p.terminals, p.entityPkgs} {
		for _, s := range group {
			_, _ = h.WriteString(s)
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte{1})
	}
	return h.Sum64()
}
