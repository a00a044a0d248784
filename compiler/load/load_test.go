package load

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/navgen/compiler/diag"
)

const shopSource = `package shop

import "time"

//navgen:entity
type Order struct {
	ID        int
	Total     float64
	CreatedAt time.Time
	Customer  *Customer
	Lines     []*OrderLine
	note      string
	Internal  string ` + "`navgen:\"-\"`" + `
}

//navgen:entity
type Customer struct {
	ID              int
	Name            string
	ShippingAddress *Address
	Orders          []Order
}

// Address is a postal address.
//
//navgen:entity
type Address struct {
	Street, City string
}

//navgen:entity
type OrderLine struct {
	Qty     int
	Product Product
}

type (
	// Product is not annotated.
	Product struct {
		SKU string
	}
)
`

const apiSource = `package api

import "example.com/shop"

//navgen:projection shop.Order
type OrderSummary struct {
	ID       int
	Total    float64
	Customer *CustomerSummary
	Lines    []shop.OrderLine
	Extra    string
}

//navgen:projection Customer
type CustomerSummary struct {
	Name string
}

//navgen:projection Missing
type Orphan struct{}

//navgen:projection
type Nameless struct{}
`

func parseShop(t *testing.T, extra ...Source) *Snapshot {
	t.Helper()
	srcs := append([]Source{
		{PkgPath: "example.com/shop", Path: "/src/shop/shop.go", Content: []byte(shopSource)},
	}, extra...)
	snap, err := Parse(srcs...)
	require.NoError(t, err)
	return snap
}

func TestParse(t *testing.T) {
	snap := parseShop(t)
	files := snap.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "shop", files[0].PkgName)
	assert.Equal(t, "/src/shop", files[0].Dir())
	assert.False(t, files[0].Generated)
	assert.False(t, snap.Typed())
	assert.NotZero(t, snap.Hash())

	again := parseShop(t)
	assert.Equal(t, snap.Hash(), again.Hash())

	changed, err := Parse(Source{PkgPath: "example.com/shop", Path: "/src/shop/shop.go", Content: []byte(shopSource + "\n// tail\n")})
	require.NoError(t, err)
	assert.NotEqual(t, snap.Hash(), changed.Hash())

	_, err = Parse(Source{Path: "bad.go", Content: []byte("package")})
	var le *LoadError
	require.ErrorAs(t, err, &le)
}

func TestLoadBuildFlags(t *testing.T) {
	const pattern = "./testdata/buildflags"
	snap, err := Load(context.Background(), ".", nil, pattern)
	require.NoError(t, err)
	assert.True(t, snap.Typed())
	assert.Empty(t, snap.Errors)
	cat, _, err := Discover(context.Background(), snap, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Group", "User"}, cat.Names())

	snap, err = Load(context.Background(), ".", []string{"-tags=hidegroups"}, pattern)
	require.NoError(t, err)
	cat, _, err = Discover(context.Background(), snap, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, cat.Names())

	_, err = Load(context.Background(), ".", nil, "./testdata/missing")
	var le *LoadError
	require.ErrorAs(t, err, &le)
}

func TestDiscoverEntities(t *testing.T) {
	cat, ds, err := Discover(context.Background(), parseShop(t), Options{})
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.Equal(t, []string{"Address", "Customer", "Order", "OrderLine"}, cat.Names())

	order, ok := cat.Entity("Order")
	require.True(t, ok)
	assert.Equal(t, "example.com/shop", order.PkgPath)
	assert.Equal(t, "shop", order.PkgName)

	var names []string
	for _, f := range order.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"ID", "Total", "CreatedAt", "Customer", "Lines"}, names)

	created, _ := order.Field("CreatedAt")
	assert.Equal(t, Scalar, created.Kind)
	assert.Equal(t, "time.Time", created.Type.String())
	assert.Equal(t, "time", created.Type.Pkg)

	customer, ok := order.Relationship("Customer")
	require.True(t, ok)
	assert.Equal(t, "Customer", customer.Target)
	assert.True(t, customer.Pointer)
	assert.False(t, customer.Many)
	assert.True(t, customer.Nillable())

	lines, ok := order.Relationship("Lines")
	require.True(t, ok)
	assert.True(t, lines.Many)
	assert.True(t, lines.Pointer)
	assert.Equal(t, "[]*OrderLine", lines.Type.String())

	assert.Equal(t, []string{"Customer", "Lines"}, cat.Relationships("Order"))
	assert.Equal(t, []string{"ShippingAddress", "Orders"}, cat.Relationships("Customer"))
	target, ok := cat.Target("Customer", "Orders")
	assert.True(t, ok)
	assert.Equal(t, "Order", target)
	_, ok = cat.Target("Customer", "Name")
	assert.False(t, ok)

	line, _ := cat.Entity("OrderLine")
	product, _ := line.Field("Product")
	assert.Equal(t, Scalar, product.Kind, "Product is not an entity")

	addr, _ := cat.Entity("Address")
	assert.Len(t, addr.Fields, 2)
	assert.Empty(t, addr.Relationships())
}

func TestDiscoverEntityPackages(t *testing.T) {
	cat, _, err := Discover(context.Background(), parseShop(t), Options{EntityPackages: []string{"example.com/shop"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Address", "Customer", "Order", "OrderLine", "Product"}, cat.Names())

	line, _ := cat.Entity("OrderLine")
	product, _ := line.Relationship("Product")
	require.NotNil(t, product)
	assert.False(t, product.Nillable())
}

func TestDiscoverCompanions(t *testing.T) {
	snap := parseShop(t, Source{PkgPath: "example.com/api", Path: "/src/api/api.go", Content: []byte(apiSource)})
	cat, ds, err := Discover(context.Background(), snap, Options{})
	require.NoError(t, err)

	require.Len(t, ds, 2)
	assert.Equal(t, diag.UnresolvedRelationship, ds[0].Code)
	assert.Contains(t, ds[0].Message, `"Missing"`)
	assert.Contains(t, ds[1].Message, "names no entity")

	comps := cat.Companions()
	require.Len(t, comps, 2)
	assert.Equal(t, "CustomerSummary", comps[0].Name)
	assert.Equal(t, "OrderSummary", comps[1].Name)

	summary, ok := cat.Companion("example.com/api", "OrderSummary")
	require.True(t, ok)
	assert.Equal(t, "Order", summary.Entity)

	byName := make(map[string]*Field)
	for _, f := range summary.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, Relationship, byName["Customer"].Kind)
	assert.Equal(t, "CustomerSummary", byName["Customer"].Companion)
	assert.Equal(t, "Customer", byName["Customer"].Target)
	assert.Equal(t, Relationship, byName["Lines"].Kind)
	assert.Equal(t, "OrderLine", byName["Lines"].Target)
	assert.Empty(t, byName["Lines"].Companion)
	assert.Equal(t, Scalar, byName["Extra"].Kind)
}

func TestDiscoverDuplicateEntity(t *testing.T) {
	dup := Source{PkgPath: "example.com/other", Path: "/src/other/other.go", Content: []byte(`package other

//navgen:entity
type Order struct{ Code string }
`)}
	cat, ds, err := Discover(context.Background(), parseShop(t, dup), Options{})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, diag.DuplicateEntity, ds[0].Code)
	order, _ := cat.Entity("Order")
	assert.Equal(t, "example.com/other", order.PkgPath, "files are visited in path order")
}

func TestDiscoverSkipsGenerated(t *testing.T) {
	gen := Source{PkgPath: "example.com/shop", Path: "/src/shop/order_nav.go", Content: []byte(`// Code generated by navgen. DO NOT EDIT.

package shop

//navgen:entity
type Ghost struct{}
`)}
	cat, _, err := Discover(context.Background(), parseShop(t, gen), Options{})
	require.NoError(t, err)
	_, ok := cat.Entity("Ghost")
	assert.False(t, ok)
}

func TestDiscoverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Discover(ctx, parseShop(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalogHash(t *testing.T) {
	a, _, _ := Discover(context.Background(), parseShop(t), Options{})
	b, _, _ := Discover(context.Background(), parseShop(t), Options{})
	assert.Equal(t, a.Hash(), b.Hash())

	c, _, _ := Discover(context.Background(), parseShop(t), Options{EntityPackages: []string{"example.com/shop"}})
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestPackageName(t *testing.T) {
	tests := map[string]string{
		"time":                              "time",
		"gopkg.in/yaml.v3":                  "yaml",
		"github.com/vmihailenco/msgpack/v5": "msgpack",
		"example.com/shop":                  "shop",
	}
	for in, want := range tests {
		assert.Equal(t, want, PackageName(in), in)
	}
}

func TestTypeRef(t *testing.T) {
	snap, err := Parse(Source{PkgPath: "example.com/x", Path: "x.go", Content: []byte(`package x

import (
	"time"
	y "gopkg.in/yaml.v3"
)

//navgen:entity
type T struct {
	A map[string][]*time.Duration
	B [4]byte
	C y.Node
	D func() error
	E *int
}
`)})
	require.NoError(t, err)
	cat, _, err := Discover(context.Background(), snap, Options{})
	require.NoError(t, err)
	e, _ := cat.Entity("T")

	tests := map[string]string{
		"A": "map[string][]*time.Duration",
		"B": "[4]byte",
		"C": "yaml.Node",
		"D": "func() error",
		"E": "*int",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			f, ok := e.Field(name)
			require.True(t, ok)
			assert.Equal(t, want, f.Type.String())
		})
	}

	c, _ := e.Field("C")
	assert.Equal(t, "gopkg.in/yaml.v3", c.Type.Pkg)
	d, _ := e.Field("D")
	assert.Equal(t, KindRaw, d.Type.Kind)
	a, _ := e.Field("A")
	assert.True(t, a.Nillable())
	assert.True(t, a.Type.Equal(a.Type))
	assert.False(t, a.Type.Equal(d.Type))
}
