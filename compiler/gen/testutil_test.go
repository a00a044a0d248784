package gen

import (
	"context"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/navgen/compiler/load"
	"github.com/syssam/navgen/compiler/usage"
)

const shopSource = `package shop

//navgen:entity
type Order struct {
	ID       int
	Total    float64
	Customer *Customer
	Lines    []*OrderLine
}

//navgen:entity
type Customer struct {
	ID              int
	Name            string
	ShippingAddress *Address
	Orders          []*Order
}

//navgen:entity
type Address struct {
	Street string
	City   string
}

//navgen:entity
type OrderLine struct {
	Qty     int
	Product *Product
}

//navgen:entity
type Product struct {
	SKU   string
	Price float64
}
`

const apiSource = `package api

import "example.com/shop"

//navgen:projection shop.Order
type OrderView struct {
	ID       int
	Total    string
	Customer *CustomerView
	Lines    []LineView
	Note     string
}

//navgen:projection shop.Customer
type CustomerView struct {
	Name            string
	ShippingAddress *shop.Address
}

//navgen:projection shop.OrderLine
type LineView struct {
	Qty     int
	Product *shop.Product
}
`

func shopSources() []load.Source {
	return []load.Source{
		{PkgPath: "example.com/shop", Path: "/src/shop/shop.go", Content: []byte(shopSource)},
		{PkgPath: "example.com/api", Path: "/src/api/api.go", Content: []byte(apiSource)},
	}
}

func testCatalog(t *testing.T, srcs ...load.Source) *load.Catalog {
	t.Helper()
	if len(srcs) == 0 {
		srcs = shopSources()
	}
	snap, err := load.Parse(srcs...)
	require.NoError(t, err)
	cat, ds, err := load.Discover(context.Background(), snap, load.Options{})
	require.NoError(t, err)
	require.Empty(t, ds)
	return cat
}

// orderUsage is the usage of
//
//	QueryOrder(src).WithCustomer(func(c CustomerNav) navgen.Includer {
//		return c.WithShippingAddress()
//	}).WithLines().All(ctx)
func orderUsage() *usage.Set {
	return usage.NewSet(usage.Observed("Order", usage.TreeOf(
		usage.MustPath("Customer", "ShippingAddress"),
		usage.MustPath("Lines"),
	)))
}

func testPlan(t *testing.T, cat *load.Catalog, set *usage.Set, opts ...Option) *Plan {
	t.Helper()
	cfg, err := NewConfig(opts...)
	require.NoError(t, err)
	plan, _, err := NewPlan(context.Background(), cat, set, cfg)
	require.NoError(t, err)
	return plan
}

func paths(caps []*Capability) []string {
	var out []string
	for _, c := range caps {
		out = append(out, c.Path.Key())
	}
	return out
}

// requireParses fails unless src is a syntactically valid Go file.
func requireParses(t *testing.T, src []byte) {
	t.Helper()
	_, err := parser.ParseFile(token.NewFileSet(), "generated.go", src, parser.AllErrors)
	require.NoError(t, err, "%s", src)
}

// flat collapses every run of white space in src, so assertions on rendered
// code do not depend on gofmt alignment.
func flat(src []byte) string {
	return strings.Join(strings.Fields(string(src)), " ")
}
