// Package watcher reruns build tasks when source files change.
//
// A Watcher owns a table of bindings. Each binding maps a set of glob
// patterns to one task. File events are debounced per binding, and a binding
// never has more than one rerun in flight plus one queued behind it: events
// that arrive while a rerun is running collapse into a single follow-up run.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/fsnotify/fsnotify"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/executor"
	"github.com/vk/sitegridgo/internal/task"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// Binding maps file patterns to the task that rebuilds them.
type Binding struct {
	Name string
	// Patterns are absolute doublestar patterns. A pattern without glob
	// characters names a single file.
	Patterns []string
	Task     task.ID
	// OnSuccess is called after a successful rerun with the changed paths
	// that triggered it. It may be nil.
	OnSuccess func(ctx context.Context, changed []string)
}

// Config holds watcher configuration options.
type Config struct {
	Runner   executor.Runner
	Debounce time.Duration
	Bindings []Binding
}

// Watcher dispatches file events to bindings.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	runner    executor.Runner
	debounce  time.Duration
	bindings  []*binding

	ctx  context.Context
	done chan struct{}
	wg   sync.WaitGroup
}

type binding struct {
	Binding

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	running bool
	pending bool
	changed map[string]struct{}
	stopped bool
}

// New creates a watcher. Nothing is watched until Start is called.
func New(cfg Config) (*Watcher, error) {
	if cfg.Runner == nil {
		return nil, errors.New("watcher: runner is required")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	bindings := make([]*binding, 0, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		for _, p := range b.Patterns {
			if _, err := doublestar.PathMatch(p, p); err != nil {
				return nil, fmt.Errorf("binding %q: pattern %q: %w", b.Name, p, err)
			}
		}
		bindings = append(bindings, &binding{Binding: b, changed: make(map[string]struct{})})
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		runner:    cfg.Runner,
		debounce:  debounce,
		bindings:  bindings,
		ctx:       context.Background(),
		done:      make(chan struct{}),
	}, nil
}

// Start adds the watch roots of every binding and begins dispatching events.
// Reruns use ctx for logging and cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	w.ctx = ctx

	recursive, single := watchRoots(w.bindings)
	for _, dir := range recursive {
		if err := w.addTree(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("Watch root does not exist, skipping.", "dir", dir)
				continue
			}
			return err
		}
	}
	for _, dir := range single {
		if err := w.fsWatcher.Add(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("Watch root does not exist, skipping.", "dir", dir)
				continue
			}
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}

	for _, b := range w.bindings {
		logger.Debug("Watch binding active.", "binding", b.Name, "task", b.Task.String(), "patterns", b.Patterns)
	}

	go w.loop()
	return nil
}

// Stop terminates the watcher, cancels pending reruns and waits for the ones
// already running.
func (w *Watcher) Stop() error {
	close(w.done)
	for _, b := range w.bindings {
		b.mu.Lock()
		b.stopped = true
		if b.timer != nil {
			b.timer.Stop()
		}
		b.pending = false
		b.mu.Unlock()
	}
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	logger := ctxlog.FromContext(w.ctx)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logger.Warn("Could not watch new directory.", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			w.dispatch(event.Name)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error.", "error", err)

		case <-w.done:
			return
		}
	}
}

// dispatch routes one changed path to every binding whose patterns match it.
func (w *Watcher) dispatch(path string) {
	for _, b := range w.bindings {
		if b.matches(path) {
			w.trigger(b, path)
		}
	}
}

// trigger (re)starts the binding's debounce timer.
func (w *Watcher) trigger(b *binding, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.changed[path] = struct{}{}
	b.gen++
	gen := b.gen
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(w.debounce, func() { w.fire(b, gen) })
}

// fire runs when the debounce timer of generation gen expires. A rerun that
// is already in flight turns this into the single queued follow-up.
func (w *Watcher) fire(b *binding, gen uint64) {
	b.mu.Lock()
	if b.stopped || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	if b.running {
		b.pending = true
		b.mu.Unlock()
		return
	}
	b.running = true
	changed := b.takeChanged()
	w.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer w.wg.Done()
		for {
			w.rerun(b, changed)

			b.mu.Lock()
			if !b.pending || b.stopped {
				b.running = false
				b.pending = false
				b.mu.Unlock()
				return
			}
			b.pending = false
			changed = b.takeChanged()
			b.mu.Unlock()
		}
	}()
}

func (w *Watcher) rerun(b *binding, changed []string) {
	ctx := ctxlog.With(w.ctx, "binding", b.Name)
	logger := ctxlog.FromContext(ctx)
	logger.Info("🔄 Change detected, rebuilding.", "task", b.Task.String(), "files", len(changed))

	if err := w.runner.Run(ctx, b.Task); err != nil {
		logger.Error("❌ Rebuild failed, serving previous output.", "task", b.Task.String(), "error", err)
		return
	}
	if b.OnSuccess != nil {
		b.OnSuccess(ctx, changed)
	}
}

// takeChanged must be called with b.mu held.
func (b *binding) takeChanged() []string {
	out := make([]string, 0, len(b.changed))
	for p := range b.changed {
		out = append(out, p)
	}
	sort.Strings(out)
	b.changed = make(map[string]struct{})
	return out
}

func (b *binding) matches(path string) bool {
	for _, p := range b.Patterns {
		if ok, _ := doublestar.PathMatch(p, path); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
}

// watchRoots splits the directories to watch into trees (patterns with glob
// characters, watched from their static prefix down) and single directories
// (literal file patterns, watched through their parent only).
func watchRoots(bindings []*binding) (recursive, single []string) {
	seenR := map[string]bool{}
	seenS := map[string]bool{}
	for _, b := range bindings {
		for _, p := range b.Patterns {
			if i := strings.IndexAny(p, "*?[{"); i >= 0 {
				dir := filepath.Dir(p[:i] + "x")
				if !seenR[dir] {
					seenR[dir] = true
					recursive = append(recursive, dir)
				}
				continue
			}
			dir := filepath.Dir(p)
			if !seenS[dir] {
				seenS[dir] = true
				single = append(single, dir)
			}
		}
	}
	sort.Strings(recursive)
	sort.Strings(single)
	return recursive, single
}
