package usage

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/navgen/compiler/chain"
	"github.com/syssam/navgen/compiler/diag"
)

// =============================================================================
// Fixtures
// =============================================================================

type rel struct{ name, target string }

// testSchema is an in-memory Schema keeping declaration order.
type testSchema map[string][]rel

func (s testSchema) Names() []string {
	var names []string
	for n := range s {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (s testSchema) Relationships(entity string) []string {
	var out []string
	for _, r := range s[entity] {
		out = append(out, r.name)
	}
	return out
}

func (s testSchema) Target(entity, relationship string) (string, bool) {
	for _, r := range s[entity] {
		if r.name == relationship {
			return r.target, true
		}
	}
	return "", false
}

var shop = testSchema{
	"Order":     {{"Customer", "Customer"}, {"Lines", "OrderLine"}, {"Payments", "Payment"}},
	"Customer":  {{"ShippingAddress", "Address"}, {"Orders", "Order"}},
	"OrderLine": {{"Product", "Product"}},
	"Payment":   nil,
	"Address":   nil,
	"Category":  {{"Products", "Product"}, {"Parent", "Category"}},
	"Product":   {{"Category", "Category"}, {"Supplier", "Supplier"}},
	"Supplier":  {{"Address", "Address"}},
}

func use(entity, path string, line int) chain.Usage {
	return chain.Usage{
		Entity: entity,
		Path:   MustPathString(path).Segments(),
		Pos:    diag.Position{File: "app.go", Line: line},
	}
}

func MustPathString(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func keys(paths []Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.Key()
	}
	return out
}

// =============================================================================
// Path
// =============================================================================

func TestPath(t *testing.T) {
	p := MustPath("Customer", "ShippingAddress")
	assert.Equal(t, "Customer/ShippingAddress", p.String())
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "Customer", p.Head())
	assert.Equal(t, "ShippingAddress", p.Last())
	assert.Equal(t, MustPath("ShippingAddress"), p.Tail())
	assert.Equal(t, MustPath("Customer"), p.Parent())
	assert.True(t, MustPath("Customer").Parent().IsZero())
	assert.Equal(t, p, MustPath("Customer").Append("ShippingAddress"))
	assert.Equal(t, MustPath("Customer"), p.Truncate(1))
	assert.Equal(t, p, p.Truncate(5))
	assert.True(t, p.HasPrefix(MustPath("Customer")))
	assert.False(t, MustPath("CustomerX").HasPrefix(MustPath("Customer")))
	assert.True(t, p.Equal(MustPath("Customer", "ShippingAddress")))
	assert.True(t, p == MustPath("Customer", "ShippingAddress"), "paths are comparable")
	assert.Equal(t, p.Hash(), MustPath("Customer", "ShippingAddress").Hash())
	assert.Negative(t, MustPath("A").Compare(MustPath("A", "B")))
	assert.Positive(t, MustPath("B").Compare(MustPath("A", "B")))

	segs := p.Segments()
	segs[0] = "Mutated"
	assert.Equal(t, "Customer", p.Head(), "Segments returns a copy")

	m := map[Path]int{p: 1}
	assert.Equal(t, 1, m[MustPath("Customer", "ShippingAddress")])

	_, err := NewPath()
	assert.Error(t, err)
	_, err = NewPath("Customer", "")
	assert.Error(t, err)
	_, err = ParsePath("a//b")
	assert.Error(t, err)
	_, err = ParsePath("")
	assert.Error(t, err)
	assert.Panics(t, func() { MustPath("1x") })
}

// =============================================================================
// Tree and Set
// =============================================================================

func TestTree(t *testing.T) {
	b := NewTreeBuilder()
	assert.True(t, b.Insert(MustPath("Lines")))
	assert.True(t, b.Insert(MustPath("Customer", "ShippingAddress")))
	assert.False(t, b.Insert(MustPath("Customer", "ShippingAddress")))
	assert.False(t, b.Insert(MustPath("Customer")), "prefixes are already nodes")
	assert.Equal(t, 3, b.Len())

	tree := b.Build(nil)
	assert.Equal(t, []string{"Customer", "Customer/ShippingAddress", "Lines"}, keys(tree.Paths()))
	assert.Equal(t, []string{"Customer/ShippingAddress", "Lines"}, keys(tree.Leaves()))
	assert.Equal(t, []string{"Customer", "Lines"}, tree.Children(Path{}))
	assert.Equal(t, []string{"ShippingAddress"}, tree.Children(MustPath("Customer")))
	assert.Equal(t, 2, tree.Depth())
	assert.True(t, tree.Has(MustPath("Customer")))
	assert.False(t, tree.Has(MustPath("Payments")))
	assert.Equal(t, "[Customer, Customer/ShippingAddress, Lines]", tree.String())

	reversed := b.Build(func(_ Path, kids []string) { slices.Sort(kids); slices.Reverse(kids) })
	assert.Equal(t, []string{"Lines", "Customer", "Customer/ShippingAddress"}, keys(reversed.Paths()))
	assert.True(t, tree.Equal(reversed), "equality ignores child order")
	assert.Equal(t, tree.Hash(), reversed.Hash())

	assert.True(t, Tree{}.Empty())
	assert.Zero(t, Tree{}.Depth())
	assert.False(t, tree.Equal(TreeOf(MustPath("Lines"))))
}

func TestSet(t *testing.T) {
	set := NewSet(
		Observed("Order", TreeOf(MustPath("Customer"))),
		NoUsage("Customer"),
		Observed("Address", Tree{}),
	)
	assert.Equal(t, []string{"Address", "Customer", "Order"}, set.Names())
	assert.Equal(t, []string{"Order"}, set.Observed())
	assert.Equal(t, UsageObserved, set.State("Order"))
	assert.Equal(t, NoUsageObserved, set.State("Address"), "an empty tree is no usage")
	assert.Equal(t, NoUsageObserved, set.State("Unknown"))
	assert.Equal(t, "usage-observed", UsageObserved.String())

	e, ok := set.Entity("Order")
	require.True(t, ok)
	assert.Equal(t, "Order", e.Name())
	assert.Equal(t, 1, e.Tree().Len())

	same := NewSet(NoUsage("Customer"), NoUsage("Address"), Observed("Order", TreeOf(MustPath("Customer"))))
	assert.True(t, set.Equal(same))
	assert.Equal(t, set.Hash(), same.Hash())

	other := NewSet(NoUsage("Customer"), NoUsage("Address"), Observed("Order", TreeOf(MustPath("Lines"))))
	assert.False(t, set.Equal(other))
	assert.NotEqual(t, set.Hash(), other.Hash())
	assert.False(t, set.Equal(nil))
}

// =============================================================================
// Aggregate
// =============================================================================

func aggregate(t *testing.T, usages []chain.Usage, opts ...AggregateOption) (*Set, diag.List) {
	t.Helper()
	set, ds, err := Aggregate(context.Background(), shop, usages, opts...)
	require.NoError(t, err)
	return set, ds
}

func TestAggregateOrderScenario(t *testing.T) {
	set, ds := aggregate(t, []chain.Usage{
		use("Order", "Customer/ShippingAddress", 4),
		use("Order", "Lines", 7),
	})
	assert.Empty(t, ds)

	order, _ := set.Entity("Order")
	assert.Equal(t, UsageObserved, order.State())
	assert.Equal(t, []string{"Customer", "Customer/ShippingAddress", "Lines"}, keys(order.Tree().Paths()))

	for _, name := range []string{"Customer", "OrderLine", "Payment", "Address", "Category", "Product", "Supplier"} {
		assert.Equal(t, NoUsageObserved, set.State(name), name)
	}
}

func TestAggregateMergesSharedPrefixes(t *testing.T) {
	set, ds := aggregate(t, []chain.Usage{
		use("Category", "Products/Supplier", 1),
		use("Category", "Products/Category", 2),
	})
	assert.Empty(t, ds)
	cat, _ := set.Entity("Category")
	tree := cat.Tree()
	assert.Equal(t, []string{"Products"}, tree.Children(Path{}), "one top-level node")
	assert.Equal(t, []string{"Products", "Products/Category", "Products/Supplier"}, keys(tree.Paths()),
		"children follow declaration order of Product")
}

func TestAggregateDepthTruncation(t *testing.T) {
	set, ds := aggregate(t, []chain.Usage{use("Order", "Customer/Orders/Lines/Product", 3)})
	require.Len(t, ds, 1)
	assert.Equal(t, diag.DepthExceeded, ds[0].Code)
	assert.Equal(t, "Order", ds[0].Entity)
	assert.Contains(t, ds[0].Message, "truncated to Customer/Orders")

	order, _ := set.Entity("Order")
	assert.Equal(t, []string{"Customer", "Customer/Orders"}, keys(order.Tree().Paths()))
	assert.Equal(t, 2, order.Tree().Depth())

	deeper, ds := aggregate(t, []chain.Usage{use("Order", "Customer/Orders/Lines/Product", 3)}, WithMaxDepth(3))
	require.Len(t, ds, 1)
	order, _ = deeper.Entity("Order")
	assert.Equal(t, 3, order.Tree().Depth())

	_, ds = aggregate(t, []chain.Usage{use("Order", "Customer/Orders", 3)}, WithMaxDepth(0))
	assert.Len(t, ds, 1, "depth is at least one")
}

func TestAggregateDepthOncePerChain(t *testing.T) {
	term := diag.Position{File: "app.go", Line: 9, Column: 40}
	branch := func(path string, col int) chain.Usage {
		u := use("Order", path, 9)
		u.Pos.Column = col
		u.Chain = term
		return u
	}
	set, ds := aggregate(t, []chain.Usage{
		branch("Customer/Orders/Lines", 30),
		branch("Customer/Orders/Payments", 35),
	})
	require.Len(t, ds, 1)
	assert.Equal(t, diag.DepthExceeded, ds[0].Code)
	assert.Contains(t, ds[0].Message, "truncated to Customer/Orders")
	order, _ := set.Entity("Order")
	assert.Equal(t, []string{"Customer", "Customer/Orders"}, keys(order.Tree().Paths()))

	other := branch("Customer/Orders/Lines", 30)
	other.Chain.Line = 12
	_, ds = aggregate(t, []chain.Usage{branch("Customer/Orders/Lines", 30), other})
	assert.Len(t, ds, 2, "separate chains report separately")

	_, ds = aggregate(t, []chain.Usage{
		branch("Customer/Orders/Lines", 30),
		branch("Lines/Product/Category", 35),
	})
	assert.Len(t, ds, 2, "distinct truncation points of one chain")
}

func TestAggregateUnresolved(t *testing.T) {
	set, ds := aggregate(t, []chain.Usage{
		use("Order", "Customer/Nope", 2),
		use("Invoice", "Lines", 3),
		use("Order", "Missing", 4),
	})
	require.Len(t, ds, 3)
	assert.Equal(t, diag.UnresolvedRelationship, ds[0].Code)
	assert.Equal(t, `relationship "Nope" is not declared on Customer`, ds[0].Message)
	assert.Equal(t, `navigation chain starts at unknown entity "Invoice"`, ds[1].Message)
	assert.Equal(t, `relationship "Missing" is not declared on Order`, ds[2].Message)

	order, _ := set.Entity("Order")
	assert.Equal(t, []string{"Customer"}, keys(order.Tree().Paths()), "path kept up to the last resolved segment")
	_, ok := set.Entity("Invoice")
	assert.False(t, ok)
}

func TestAggregateSplitsCompositeSegments(t *testing.T) {
	set, ds := aggregate(t, []chain.Usage{
		{Entity: "Order", Path: []string{"CustomerShippingAddress"}},
		{Entity: "Category", Path: []string{"ProductsSupplierAddress"}},
	}, WithMaxDepth(3))
	assert.Empty(t, ds)
	order, _ := set.Entity("Order")
	assert.True(t, order.Tree().Has(MustPath("Customer", "ShippingAddress")))
	cat, _ := set.Entity("Category")
	assert.True(t, cat.Tree().Has(MustPath("Products", "Supplier", "Address")))
}

func TestAggregateIsDeterministic(t *testing.T) {
	usages := []chain.Usage{
		use("Order", "Customer/ShippingAddress", 1),
		use("Order", "Lines/Product", 2),
		use("Category", "Products", 3),
		use("Order", "Customer", 4),
	}
	a, _ := aggregate(t, usages)
	b, _ := aggregate(t, usages)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	shuffled := slices.Clone(usages)
	slices.Reverse(shuffled)
	c, _ := aggregate(t, shuffled)
	assert.True(t, a.Equal(c), "usage order does not matter")

	d, _ := aggregate(t, usages[:2])
	assert.False(t, a.Equal(d))
}

func TestAggregateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Aggregate(ctx, shop, []chain.Usage{use("Order", "Lines", 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Store
// =============================================================================

func TestStoreRoundTrip(t *testing.T) {
	set, _ := aggregate(t, []chain.Usage{
		use("Order", "Customer/ShippingAddress", 1),
		use("Order", "Lines", 2),
		use("Category", "Products/Supplier", 3),
	})
	store := NewStore(filepath.Join(t.TempDir(), ".navgen", "usage.msgpack"))

	missing, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Save(set))
	info, err := os.Stat(store.Path())
	require.NoError(t, err)

	got, err := store.Load()
	require.NoError(t, err)
	assert.True(t, set.Equal(got))

	require.NoError(t, store.Save(set))
	again, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime(), "identical snapshots are not rewritten")
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not msgpack"))
	assert.Error(t, err)
}

func TestSummariesAndUsages(t *testing.T) {
	set, _ := aggregate(t, []chain.Usage{use("Order", "Customer/ShippingAddress", 1)})
	var order Summary
	for _, s := range set.Summaries() {
		if s.Entity == "Order" {
			order = s
		}
	}
	assert.Equal(t, Summary{Entity: "Order", State: "usage-observed", Paths: []string{"Customer", "Customer/ShippingAddress"}}, order)

	pos := diag.Position{File: DefaultStorePath}
	usages := set.Usages(pos)
	require.Len(t, usages, 1)
	assert.Equal(t, []string{"Customer", "ShippingAddress"}, usages[0].Path)

	replayed, _ := aggregate(t, usages)
	assert.True(t, set.Equal(replayed))
}
