// Package watcher triggers re-ingestion when statute source directories change.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 5 * time.Second

// Watcher watches source directories and calls onChange with the set of changed
// files once events have been quiet for the debounce interval. Calls never overlap;
// changes seen during a call are delivered in the next one.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onChange   func(ctx context.Context, changed []string)
	debounce   time.Duration
	logger     *zap.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	runMu   sync.Mutex
	ctx     context.Context
	done    chan struct{}
	started bool
	stopped sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets the quiet period before onChange fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. extensions filter which files count as
// changes (empty = all).
func NewWatcher(roots, extensions []string, recursive bool, onChange func(ctx context.Context, changed []string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		onChange:   onChange,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns an error if a root cannot be watched and runs
// until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := addTree(fw, root, w.recursive); err != nil {
			_ = fw.Close()
			return err
		}
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	w.logger.Debug("watcher starting", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.recursive {
				if err := addTree(fw, path, true); err != nil {
					w.logger.Warn("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
			}
			w.markDirectory(path)
			return
		}
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if matchExtension(path, w.extensions) {
		w.mark(path)
	}
}

// markDirectory treats every matching file in a newly created directory as changed.
func (w *Watcher) markDirectory(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if matchExtension(path, w.extensions) {
			w.mark(path)
		}
		return nil
	})
}

func (w *Watcher) mark(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.mu.Lock()
	if !w.started || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	ctx := w.ctx
	w.mu.Unlock()

	sort.Strings(changed)
	w.logger.Info("source files changed", zap.Int("files", len(changed)))
	if w.onChange != nil {
		w.onChange(ctx, changed)
	}
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		rootClean := filepath.Clean(root)
		if rootClean == path || inDir(rootClean, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	extNorm := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == extNorm {
			return true
		}
	}
	return false
}

func addTree(fw *fsnotify.Watcher, root string, recursive bool) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return err
	}
	if !recursive {
		return fw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// Stop stops the watcher and drops pending changes.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = make(map[string]struct{})
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopped.Do(func() { close(w.done) })
}
