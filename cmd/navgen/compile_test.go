package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

const compileShop = `package shop

//navgen:entity
type Order struct {
	ID       int
	Total    float64
	Customer *Customer
	Lines    []*OrderLine
}

//navgen:entity
type Customer struct {
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

const compileAPI = `package api

import "example.com/demo/shop"

//navgen:projection shop.Order
type OrderView struct {
	ID       int
	Total    float64
	Customer *CustomerView
	Lines    []LineView
}

//navgen:projection shop.Customer
type CustomerView struct {
	Name            string
	ShippingAddress *shop.Address
}

//navgen:projection shop.OrderLine
type LineView struct {
	Qty int
}
`

const compileApp = `package app

import (
	"context"

	"github.com/syssam/navgen"

	"example.com/demo/api"
	"example.com/demo/shop"
)

func Orders(ctx context.Context, src navgen.Source[shop.Order]) ([]*api.OrderView, error) {
	q := shop.QueryOrder(src).
		WithCustomer(func(c shop.CustomerNav) navgen.Includer {
			return c.WithShippingAddress()
		}).
		WithLines()
	if err := api.OrderViewProjection.Check(q); err != nil {
		return nil, err
	}
	orders, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	return api.OrderViewProjection.Apply(orders), nil
}
`

// newCompileModule writes a module depending on a local copy of the runtime
// package, so the generated code can be type-checked without a network.
func newCompileModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("go.mod", "module example.com/demo\n\ngo 1.24\n\n"+
		"require github.com/syssam/navgen v0.0.0\n\n"+
		"replace github.com/syssam/navgen => ./navgen\n")
	write(filepath.Join("navgen", "go.mod"), "module github.com/syssam/navgen\n\ngo 1.24\n")

	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		src, err := os.ReadFile(filepath.Join(root, name))
		require.NoError(t, err)
		write(filepath.Join("navgen", name), string(src))
	}
	for name, content := range files {
		write(name, content)
	}
	return dir
}

// typeErrors loads every package of the module in dir and returns its errors.
func typeErrors(t *testing.T, dir string) []string {
	t.Helper()
	cfg := &packages.Config{
		Dir:  dir,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
		Env:  append(os.Environ(), "GOWORK=off"),
	}
	pkgs, err := packages.Load(cfg, "./...")
	require.NoError(t, err)
	require.NotEmpty(t, pkgs)
	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, e.Error())
		}
	}
	return errs
}

func TestGeneratedCodeCompiles(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	tests := map[string]map[string]string{
		"fallback": {
			filepath.Join("shop", "shop.go"): compileShop,
			filepath.Join("api", "api.go"):   compileAPI,
		},
		"observed usage": {
			filepath.Join("shop", "shop.go"): compileShop,
			filepath.Join("api", "api.go"):   compileAPI,
			filepath.Join("app", "app.go"):   compileApp,
		},
	}
	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			dir := newCompileModule(t, files)
			out, errOut, err := execute(t, "generate", "--dir", dir)
			require.NoError(t, err, errOut)
			assert.Contains(t, out, "file(s) written")
			assert.FileExists(t, filepath.Join(dir, "shop", "order_nav.go"))
			assert.FileExists(t, filepath.Join(dir, "api", "order_view_projection.go"))

			assert.Empty(t, typeErrors(t, dir))
		})
	}
}

func TestGeneratedCodeFollowsUsage(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	dir := newCompileModule(t, map[string]string{
		filepath.Join("shop", "shop.go"): compileShop,
		filepath.Join("api", "api.go"):   compileAPI,
		filepath.Join("app", "app.go"):   compileApp,
	})
	_, errOut, err := execute(t, "generate", "--dir", dir)
	require.NoError(t, err, errOut)

	order, err := os.ReadFile(filepath.Join(dir, "shop", "order_nav.go"))
	require.NoError(t, err)
	assert.Contains(t, string(order), "func (n OrderNav) WithCustomerShippingAddress() OrderWithCustomerShippingAddressNav")
	assert.NotContains(t, string(order), "WithCustomerOrders", "observed usage replaces the fallback set")
}
