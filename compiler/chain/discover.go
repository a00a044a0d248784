package chain

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"
	"runtime"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/navgen/compiler/diag"
	"github.com/syssam/navgen/compiler/load"
)

// Usage is one observed relationship path of a root entity. Path is not yet
// validated against the entity's declarations.
type Usage struct {
	Entity string
	Path   []string
	// Pos is the position of the leaf traversal call.
	Pos diag.Position
	// Chain is the position of the terminal call ending the chain.
	Chain diag.Position
}

// Key returns the path in slash separated form.
func (u Usage) Key() string {
	return strings.Join(u.Path, "/")
}

// Node is a traversal in a chain. Children are the traversals of a nested
// chain passed to it as a function literal.
type Node struct {
	Name     string
	Pos      token.Pos
	Children []*Node
}

// Leaf is a root-to-leaf path through a Node tree.
type Leaf struct {
	Path []string
	Pos  token.Pos
}

// Leaves flattens nodes into their root-to-leaf paths, in order.
func Leaves(nodes []*Node) []Leaf {
	var out []Leaf
	for _, n := range nodes {
		if len(n.Children) == 0 {
			out = append(out, Leaf{Path: []string{n.Name}, Pos: n.Pos})
			continue
		}
		for _, l := range Leaves(n.Children) {
			out = append(out, Leaf{Path: append([]string{n.Name}, l.Path...), Pos: l.Pos})
		}
	}
	return out
}

// Options configures discovery.
type Options struct {
	// Terminals lists materialization method names. Defaults to DefaultTerminals.
	Terminals []string
	// Suffixes are stripped from builder type names to find the entity.
	// Defaults to "Nav" and "Query".
	Suffixes []string
	// EntryPrefix is the prefix of entry functions such as QueryOrder and
	// the name of entry methods such as client.Order.Query(). Defaults to "Query".
	EntryPrefix string
	// IsEntity, when set, restricts root resolution to known entities.
	IsEntity func(name string) bool
	// Workers bounds the files scanned in parallel. Defaults to GOMAXPROCS.
	Workers int
}

func (o Options) withDefaults() Options {
	if len(o.Suffixes) == 0 {
		o.Suffixes = []string{"Nav", "Query"}
	}
	if o.EntryPrefix == "" {
		o.EntryPrefix = "Query"
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Result holds what discovery found.
type Result struct {
	Usages      []Usage
	Diagnostics diag.List
}

// Discover scans every non-generated file of snap. Files are scanned in
// parallel; the result lists usages in file order.
func Discover(ctx context.Context, snap *load.Snapshot, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	files := snap.Files()
	results := make([]Result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, f := range files {
		if f.Generated {
			continue
		}
		g.Go(func() error {
			r, err := DiscoverFile(ctx, snap, f, opts)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := &Result{}
	for _, r := range results {
		out.Usages = append(out.Usages, r.Usages...)
		out.Diagnostics = append(out.Diagnostics, r.Diagnostics...)
	}
	return out, nil
}

// DiscoverFile scans a single file.
func DiscoverFile(ctx context.Context, snap *load.Snapshot, f *load.File, opts Options) (Result, error) {
	opts = opts.withDefaults()
	w := &walker{
		snap:  snap,
		file:  f,
		opts:  opts,
		terms: NewTerminals(opts.Terminals...),
	}
	var err error
	ast.Inspect(f.Syntax, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok || Classify(call, w.terms).Kind != Terminal {
			return true
		}
		if err = ctx.Err(); err != nil {
			return false
		}
		w.chain(call)
		return true
	})
	if err != nil {
		return Result{}, err
	}
	return w.res, nil
}

type walker struct {
	snap  *load.Snapshot
	file  *load.File
	opts  Options
	terms Terminals
	res   Result
}

func (w *walker) pos(p token.Pos) diag.Position {
	return w.snap.Position(p)
}

// chain records the usages of the chain ending in the terminal call term.
func (w *walker) chain(term *ast.CallExpr) {
	sel := selectorOf(term.Fun)
	nodes, start := w.walk(sel.X)
	if len(nodes) == 0 {
		return
	}
	at := w.pos(sel.Sel.Pos())
	entity, foreign, ok := w.resolveRoot(start)
	if foreign {
		return
	}
	if !ok {
		w.res.Diagnostics.Addf(diag.MalformedChain, diag.Warning, at,
			"cannot resolve the root entity of the chain ending in %s", sel.Sel.Name)
		return
	}
	for _, l := range Leaves(nodes) {
		w.res.Usages = append(w.res.Usages, Usage{
			Entity: entity,
			Path:   l.Path,
			Pos:    w.pos(l.Pos),
			Chain:  at,
		})
	}
}

// walk follows a receiver chain backwards. It returns the traversal nodes in
// call order and the receiver of the first traversal. Calls that are neither
// traversals nor terminals are skipped.
func (w *walker) walk(expr ast.Expr) ([]*Node, ast.Expr) {
	var (
		rev   []*Node
		start = expr
	)
	for {
		call, ok := ast.Unparen(expr).(*ast.CallExpr)
		if !ok {
			break
		}
		sel := selectorOf(call.Fun)
		if sel == nil {
			break
		}
		cls := Classify(call, w.terms)
		if cls.Kind == Terminal {
			break
		}
		if cls.Kind == Traversal {
			rev = append(rev, w.traversal(call, sel, cls))
			start = sel.X
		}
		expr = sel.X
	}
	slices.Reverse(rev)
	return rev, start
}

func (w *walker) traversal(call *ast.CallExpr, sel *ast.SelectorExpr, cls Class) *Node {
	args := call.Args
	if cls.Literal {
		args = args[1:]
	}
	var children []*Node
	for _, a := range args {
		// Function values other than literals contribute the segment only.
		if lit, ok := ast.Unparen(a).(*ast.FuncLit); ok {
			children = append(children, w.lambda(lit)...)
		}
	}
	segs := strings.Split(cls.Name, "/")
	root := &Node{Name: segs[0], Pos: sel.Sel.Pos()}
	leaf := root
	for _, s := range segs[1:] {
		n := &Node{Name: s, Pos: sel.Sel.Pos()}
		leaf.Children = []*Node{n}
		leaf = n
	}
	leaf.Children = children
	return root
}

// lambda collects the nested chains of a function literal. Only chains
// rooted at the literal's first parameter count.
func (w *walker) lambda(lit *ast.FuncLit) []*Node {
	params := lit.Type.Params
	if params == nil || len(params.List) == 0 || len(params.List[0].Names) == 0 {
		return nil
	}
	param := params.List[0].Names[0]
	if param.Name == "_" {
		return nil
	}
	var out []*Node
	visit := func(expr ast.Expr) {
		nodes, start := w.walk(expr)
		if len(nodes) == 0 {
			return
		}
		base := baseIdent(start)
		if base == nil || !w.sameObject(base, param) {
			w.res.Diagnostics.Addf(diag.MalformedChain, diag.Warning, w.pos(expr.Pos()),
				"nested chain starts at %s, not at parameter %s; ignored", types.ExprString(start), param.Name)
			return
		}
		out = append(out, nodes...)
	}
	ast.Inspect(lit.Body, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.ReturnStmt:
			for _, r := range s.Results {
				visit(r)
			}
			return false
		case *ast.ExprStmt:
			visit(s.X)
			return false
		case *ast.AssignStmt:
			for _, r := range s.Rhs {
				visit(r)
			}
			return false
		}
		return true
	})
	return out
}

func (w *walker) sameObject(use, def *ast.Ident) bool {
	if info := w.file.Info; info != nil {
		if obj := info.Defs[def]; obj != nil {
			return info.Uses[use] == obj
		}
	}
	return use.Name == def.Name
}

// baseIdent returns the identifier a selector and call chain starts from.
func baseIdent(expr ast.Expr) *ast.Ident {
	for {
		switch x := ast.Unparen(expr).(type) {
		case *ast.Ident:
			return x
		case *ast.CallExpr:
			expr = x.Fun
		case *ast.SelectorExpr:
			expr = x.X
		case *ast.IndexExpr:
			expr = x.X
		case *ast.IndexListExpr:
			expr = x.X
		case *ast.StarExpr:
			expr = x.X
		default:
			return nil
		}
	}
}

// resolveRoot finds the entity a chain starts from: the static type when
// type information is available, then the syntax of the entry call. foreign
// reports a chain on a value of a known type unrelated to any entity, such as
// a database handle with its own WithContext method.
func (w *walker) resolveRoot(start ast.Expr) (entity string, foreign, ok bool) {
	var typed bool
	if info := w.file.Info; info != nil {
		expr := ast.Unparen(start)
		var t types.Type
		if tv, ok := info.Types[expr]; ok {
			t = tv.Type
		} else if id, ok := expr.(*ast.Ident); ok && info.Uses[id] != nil {
			t = info.Uses[id].Type()
		}
		if t != nil && !invalid(t) {
			if name, ok := w.fromType(t); ok {
				return name, false, true
			}
			typed = true
		}
	}
	if name, ok := w.fromSyntax(start); ok {
		return name, false, true
	}
	return "", typed, false
}

// invalid reports a type the checker could not determine, as for calls into
// builders that have not been generated yet.
func invalid(t types.Type) bool {
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		t = p.Elem()
	}
	b, ok := types.Unalias(t).(*types.Basic)
	return ok && b.Kind() == types.Invalid
}

func (w *walker) fromType(t types.Type) (string, bool) {
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	named, ok := t.(*types.Named)
	if !ok {
		return "", false
	}
	if args := named.TypeArgs(); args != nil && args.Len() > 0 {
		if arg, ok := types.Unalias(args.At(0)).(*types.Named); ok {
			return w.accept(arg.Obj().Name())
		}
	}
	return w.candidate(named.Obj().Name())
}

func (w *walker) fromSyntax(expr ast.Expr) (string, bool) {
	for {
		switch x := ast.Unparen(expr).(type) {
		case *ast.CallExpr:
			switch fun := ast.Unparen(x.Fun).(type) {
			case *ast.IndexExpr:
				return w.accept(typeName(fun.Index))
			case *ast.IndexListExpr:
				return w.accept(typeName(fun.Indices[0]))
			case *ast.Ident:
				return w.entry(fun.Name)
			case *ast.SelectorExpr:
				if name, ok := w.entry(fun.Sel.Name); ok {
					return name, true
				}
				if fun.Sel.Name == w.opts.EntryPrefix {
					return w.accept(typeName(fun.X))
				}
				expr = fun.X
			default:
				return "", false
			}
		case *ast.CompositeLit:
			return w.candidate(typeName(x.Type))
		case *ast.UnaryExpr:
			expr = x.X
		default:
			return "", false
		}
	}
}

// entry matches entry function names such as QueryOrder.
func (w *walker) entry(name string) (string, bool) {
	p := w.opts.EntryPrefix
	if len(name) <= len(p) || !strings.HasPrefix(name, p) || !unicode.IsUpper(rune(name[len(p)])) {
		return "", false
	}
	return w.candidate(name[len(p):])
}

// candidate strips a builder suffix from a type name.
func (w *walker) candidate(name string) (string, bool) {
	for _, sfx := range w.opts.Suffixes {
		if len(name) > len(sfx) && strings.HasSuffix(name, sfx) {
			if e, ok := w.accept(strings.TrimSuffix(name, sfx)); ok {
				return e, true
			}
		}
	}
	return w.accept(name)
}

// accept checks name against the known entities. Capability builders such as
// OrderWithCustomerNav resolve to the entity before "With".
func (w *walker) accept(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if w.opts.IsEntity == nil || w.opts.IsEntity(name) {
		return name, true
	}
	if i := strings.Index(name, "With"); i > 0 && w.opts.IsEntity(name[:i]) {
		return name[:i], true
	}
	return "", false
}

func typeName(expr ast.Expr) string {
	switch x := ast.Unparen(expr).(type) {
	case *ast.Ident:
		return x.Name
	case *ast.SelectorExpr:
		return x.Sel.Name
	case *ast.StarExpr:
		return typeName(x.X)
	case *ast.IndexExpr:
		return typeName(x.X)
	}
	return ""
}
