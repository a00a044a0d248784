package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

// Writer persists generated files with parallel execution. Files whose
// content did not change are left untouched so build caches and file
// watchers do not see spurious writes.
type Writer struct {
	workers int

	// Metrics for performance monitoring
	mu      sync.Mutex
	metrics WriterMetrics
}

// WriterMetrics tracks write performance.
type WriterMetrics struct {
	FilesWritten   int
	FilesUnchanged int
	TotalBytes     int64
	FormatTime     int64 // nanoseconds
	WriteTime      int64 // nanoseconds
}

// NewWriter creates a new writer.
func NewWriter() *Writer {
	return &Writer{workers: runtime.GOMAXPROCS(0)}
}

// WithWorkers sets the number of parallel workers.
func (w *Writer) WithWorkers(n int) *Writer {
	if n > 0 {
		w.workers = n
	}
	return w
}

// Metrics returns the metrics accumulated so far.
func (w *Writer) Metrics() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// Write formats and writes every file. It stops at the first failure.
func (w *Writer) Write(ctx context.Context, files []File) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)

	for _, f := range files {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return w.writeFile(f)
			}
		})
	}
	return eg.Wait()
}

// writeFile writes a single file.
func (w *Writer) writeFile(f File) error {
	fullPath := f.Path()

	// 1. Format; generated code must already be valid Go.
	start := time.Now()
	formatted, err := imports.Process(fullPath, f.Source, &imports.Options{Comments: true, TabIndent: true, TabWidth: 8, FormatOnly: true})
	formatTime := time.Since(start)
	if err != nil {
		// Write unformatted file for debugging (errors intentionally ignored as we're already in error state)
		debugPath := fullPath + ".error"
		_ = os.MkdirAll(filepath.Dir(debugPath), 0o755)
		_ = os.WriteFile(debugPath, f.Source, 0o644)
		return NewGenerationError("write", f.Name, fmt.Sprintf("format (unformatted written to %s)", debugPath), err)
	}

	// 2. Skip identical content.
	if prev, err := os.ReadFile(fullPath); err == nil && bytes.Equal(prev, formatted) {
		w.mu.Lock()
		w.metrics.FilesUnchanged++
		w.metrics.FormatTime += int64(formatTime)
		w.mu.Unlock()
		return nil
	}

	// 3. Ensure directory exists and write.
	start = time.Now()
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return NewGenerationError("write", f.Name, "create directory", err)
	}
	if err := os.WriteFile(fullPath, formatted, 0o644); err != nil {
		return NewGenerationError("write", f.Name, "write file", err)
	}

	w.mu.Lock()
	w.metrics.FilesWritten++
	w.metrics.TotalBytes += int64(len(formatted))
	w.metrics.FormatTime += int64(formatTime)
	w.metrics.WriteTime += int64(time.Since(start))
	w.mu.Unlock()
	return nil
}
