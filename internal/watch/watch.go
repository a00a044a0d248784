// Package watch reports changed Go files under a directory tree, debounced
// so that one save or one generation run triggers a single callback.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last change before the
// callback runs.
const DefaultDebounce = 100 * time.Millisecond

// skipDirs are never watched.
var skipDirs = []string{"vendor", "testdata", "node_modules"}

// Watcher watches the Go files under a root directory.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration
	ignore   []string
	onChange func(context.Context, []string) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore skips files whose base name matches one of the glob patterns,
// such as the generated "*_nav.go".
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) {
		w.ignore = append(w.ignore, patterns...)
	}
}

// New returns a watcher over root calling onChange with the sorted paths of
// the changed files.
func New(root string, onChange func(context.Context, []string) error, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		fsw:      fsw,
		log:      zap.NewNop(),
		debounce: DefaultDebounce,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is done. Errors from onChange are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	if err := w.addTree(w.root); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn("watch directory", zap.String("dir", ev.Name), zap.Error(err))
					}
					continue
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) || !w.relevant(ev.Name) {
				continue
			}
			w.log.Debug("file changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			clear(pending)
			slices.Sort(files)
			if err := w.onChange(ctx, files); err != nil {
				w.log.Error("handling file changes", zap.Strings("files", files), zap.Error(err))
			}
		}
	}
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		w.log.Debug("watching directory", zap.String("dir", path))
		return nil
	})
}

// relevant reports whether a change to path should trigger the callback.
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if filepath.Ext(base) != ".go" || strings.HasPrefix(base, ".") {
		return false
	}
	for _, p := range w.ignore {
		if ok, _ := filepath.Match(p, base); ok {
			return false
		}
	}
	return true
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || slices.Contains(skipDirs, name)
}
