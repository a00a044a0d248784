package gen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	dir := t.TempDir()
	files := []File{
		{Dir: dir, Name: "order_nav.go", Source: []byte("package shop\nvar  x   = 1\n")},
		{Dir: filepath.Join(dir, "api"), Name: "order_view_projection.go", Source: []byte("package api\n")},
	}

	t.Run("writes formatted files", func(t *testing.T) {
		w := NewWriter().WithWorkers(2)
		require.NoError(t, w.Write(context.Background(), files))

		got, err := os.ReadFile(filepath.Join(dir, "order_nav.go"))
		require.NoError(t, err)
		assert.Equal(t, "package shop\n\nvar x = 1\n", string(got))
		assert.FileExists(t, filepath.Join(dir, "api", "order_view_projection.go"))

		m := w.Metrics()
		assert.Equal(t, 2, m.FilesWritten)
		assert.Zero(t, m.FilesUnchanged)
		assert.Positive(t, m.TotalBytes)
	})

	t.Run("skips unchanged files", func(t *testing.T) {
		path := filepath.Join(dir, "order_nav.go")
		before, err := os.Stat(path)
		require.NoError(t, err)

		w := NewWriter()
		require.NoError(t, w.Write(context.Background(), files))
		m := w.Metrics()
		assert.Zero(t, m.FilesWritten)
		assert.Equal(t, 2, m.FilesUnchanged)

		after, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, before.ModTime(), after.ModTime())
	})
}

func TestWriterInvalidSource(t *testing.T) {
	dir := t.TempDir()
	err := NewWriter().Write(context.Background(), []File{
		{Dir: dir, Name: "broken_nav.go", Source: []byte("package shop\nfunc {")},
	})
	require.Error(t, err)
	assert.True(t, IsGenerationError(err))
	assert.FileExists(t, filepath.Join(dir, "broken_nav.go.error"))
	assert.NoFileExists(t, filepath.Join(dir, "broken_nav.go"))
}

func TestWriterCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	err := NewWriter().Write(ctx, []File{{Dir: dir, Name: "a.go", Source: []byte("package a\n")}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "a.go"))
}

func TestWriterGeneratedOutput(t *testing.T) {
	res, err := NewGenerator(nil, testCatalog(t)).Generate(context.Background(), orderUsage())
	require.NoError(t, err)
	dir := t.TempDir()
	for i := range res.Files {
		res.Files[i].Dir = filepath.Join(dir, filepath.Base(res.Files[i].Dir))
	}
	w := NewWriter()
	require.NoError(t, w.Write(context.Background(), res.Files))
	assert.Equal(t, len(res.Files), w.Metrics().FilesWritten)
	assert.FileExists(t, filepath.Join(dir, "shop", "order_nav.go"))
	assert.FileExists(t, filepath.Join(dir, "api", "order_view_projection.go"))
}
