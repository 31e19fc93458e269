package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/vk/sitegridgo/internal/config"
	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/executor"
	"github.com/vk/sitegridgo/internal/livereload"
	"github.com/vk/sitegridgo/internal/task"
	"github.com/vk/sitegridgo/internal/watcher"
)

// State is a phase of the serve loop.
type State int

const (
	StateIdle State = iota
	StateInitialBuild
	StateServing
	StateRebuilding
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialBuild:
		return "initial-build"
	case StateServing:
		return "serving"
	case StateRebuilding:
		return "rebuilding"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// notifier is the browser side of a successful rebuild.
type notifier interface {
	Reload(ctx context.Context)
	InjectCSS(ctx context.Context, changed []string)
}

// Server runs the watch/serve loop: build the temp tree once, serve it with
// live reload, and rerun the bound task whenever sources change.
type Server struct {
	runner executor.Runner
	paths  config.Paths
	opts   config.Serve

	mu         sync.Mutex
	state      State
	rebuilding int
	live       *livereload.Server
	ready      chan struct{}
}

// NewServer creates a serve loop over runner.
func NewServer(runner executor.Runner, paths config.Paths, opts config.Serve) *Server {
	return &Server{
		runner: runner,
		paths:  paths,
		opts:   opts,
		ready:  make(chan struct{}),
	}
}

// State returns the current phase.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed once the server is serving.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the dev server address once serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return ""
	}
	return s.live.Addr()
}

func (s *Server) transition(ctx context.Context, to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from != to {
		ctxlog.FromContext(ctx).Debug("Serve state changed.", "from", from.String(), "to", to.String())
	}
}

// Run blocks until ctx is cancelled. A failed initial build ends the loop
// with its error before anything is served.
func (s *Server) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer s.transition(ctx, StateTerminated)

	s.transition(ctx, StateInitialBuild)
	if err := s.runner.Run(ctx, task.ServeBuild); err != nil {
		return fmt.Errorf("initial build failed: %w", err)
	}

	live := livereload.New(s.paths.Temp.Base)
	if err := live.Start(ctx, s.opts.Addr()); err != nil {
		return err
	}
	s.mu.Lock()
	s.live = live
	s.mu.Unlock()
	defer func() {
		if err := live.Close(ctx); err != nil {
			logger.Warn("Dev server did not close cleanly.", "error", err)
		}
	}()

	w, err := watcher.New(watcher.Config{
		Runner:   (*rebuildRunner)(s),
		Debounce: s.opts.Debounce,
		Bindings: s.bindings(live),
	})
	if err != nil {
		return err
	}
	// Reruns are separate runs, each with its own run ID.
	if err := w.Start(executor.Detach(ctx)); err != nil {
		_ = w.Stop()
		return err
	}
	defer func() {
		if err := w.Stop(); err != nil {
			logger.Warn("Watcher did not stop cleanly.", "error", err)
		}
	}()

	s.transition(ctx, StateServing)
	close(s.ready)
	logger.Info("👀 Watching for changes", "address", "http://"+live.Addr())

	<-ctx.Done()
	logger.Info("🛑 Stopping dev server")
	return nil
}

// bindings is the watch table: which sources rerun which task and what the
// browser is told afterwards.
func (s *Server) bindings(n notifier) []watcher.Binding {
	p := s.paths
	reload := func(ctx context.Context, _ []string) { n.Reload(ctx) }
	return []watcher.Binding{
		{
			Name:     "styles",
			Patterns: []string{filepath.Join(p.Source.Styles, "**", "*.scss")},
			Task:     task.Scss,
			OnSuccess: func(ctx context.Context, changed []string) {
				n.InjectCSS(ctx, s.relative(changed))
			},
		},
		{
			Name: "markup",
			Patterns: []string{
				filepath.Join(p.Source.Markup, "**", "*.html"),
				filepath.Join(p.Extras.Partials, "**", "*.html"),
			},
			Task:      task.HTML,
			OnSuccess: reload,
		},
		{
			Name:      "assets",
			Patterns:  []string{filepath.Join(p.Source.Assets, "**", "*")},
			Task:      task.Assets,
			OnSuccess: reload,
		},
		{
			Name:     "vendor",
			Patterns: []string{filepath.Join(p.Source.Vendor, "**", "*"), p.Extras.Manifest},
			Task:     task.Vendor,
		},
	}
}

func (s *Server) relative(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(s.paths.Root, p)
		if err != nil {
			rel = p
		}
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

// rebuildRunner tracks the rebuilding state around every watcher rerun.
type rebuildRunner Server

func (r *rebuildRunner) Run(ctx context.Context, id task.ID) error {
	s := (*Server)(r)

	s.mu.Lock()
	s.rebuilding++
	s.mu.Unlock()
	s.transition(ctx, StateRebuilding)

	defer func() {
		s.mu.Lock()
		s.rebuilding--
		idle := s.rebuilding == 0 && s.state == StateRebuilding
		s.mu.Unlock()
		if idle {
			s.transition(ctx, StateServing)
		}
	}()
	return s.runner.Run(ctx, id)
}
