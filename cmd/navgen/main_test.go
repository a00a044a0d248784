package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopSource = `package shop

//navgen:entity
type Order struct {
	ID       int
	Customer *Customer
}

//navgen:entity
type Customer struct {
	Name   string
	Orders []*Order
}
`

// newModule writes a module holding the shop entities and returns its directory.
func newModule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/demo\n\ngo 1.21\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "shop"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop", "shop.go"), []byte(shopSource), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "navgen version: dev")
	assert.Contains(t, out, "Git commit: unknown")
}

func TestGenerateDryRun(t *testing.T) {
	dir := newModule(t)
	out, errOut, err := execute(t, "generate", "--dir", dir, "--dry-run")
	require.NoError(t, err)
	assert.Empty(t, errOut)
	assert.Equal(t, filepath.Join("shop", "customer_nav.go")+"\n"+filepath.Join("shop", "order_nav.go")+"\n", out)
	assert.NoFileExists(t, filepath.Join(dir, "shop", "order_nav.go"))
}

func TestGenerateWrites(t *testing.T) {
	dir := newModule(t)
	out, _, err := execute(t, "generate", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "navgen: 2 file(s) written, 0 unchanged")
	assert.FileExists(t, filepath.Join(dir, "shop", "order_nav.go"))
	assert.FileExists(t, filepath.Join(dir, "shop", "customer_nav.go"))
}

func TestUsageJSON(t *testing.T) {
	dir := newModule(t)
	out, _, err := execute(t, "usage", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	var report struct {
		Entities []struct {
			Entity string `json:"entity"`
			State  string `json:"state"`
		} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Entities, 2)
	for _, e := range report.Entities {
		assert.Equal(t, "no-usage-observed", e.State, e.Entity)
	}
	assert.FileExists(t, filepath.Join(dir, ".navgen", "usage.msgpack"))
}

func TestUsageNoSave(t *testing.T) {
	dir := newModule(t)
	out, _, err := execute(t, "usage", "--dir", dir, "--save=false")
	require.NoError(t, err)
	assert.Contains(t, out, "ENTITY")
	assert.Contains(t, out, "Customer")
	assert.Contains(t, out, "0 error(s), 0 warning(s), 0 info")
	assert.NoDirExists(t, filepath.Join(dir, ".navgen"))
}

func TestUsageUnknownFormat(t *testing.T) {
	dir := newModule(t)
	_, _, err := execute(t, "usage", "--dir", dir, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestConfigErrors(t *testing.T) {
	dir := newModule(t)
	t.Run("flag", func(t *testing.T) {
		_, _, err := execute(t, "generate", "--dir", dir, "--max-depth", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_depth must be at least 1")
	})
	t.Run("file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "navgen.yaml"), []byte("workers: -2\n"), 0o644))
		_, _, err := execute(t, "generate", "--dir", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "workers cannot be negative")
	})
}
