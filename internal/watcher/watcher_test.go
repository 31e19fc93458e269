package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/task"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs []task.ID
	err  error
	// gate, when set, holds every run until a value is received.
	gate chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, id task.ID) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, id)
	return r.err
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func newTestWatcher(t *testing.T, runner *fakeRunner, bindings ...Binding) *Watcher {
	t.Helper()
	w, err := New(Config{Runner: runner, Debounce: 30 * time.Millisecond, Bindings: bindings})
	require.NoError(t, err)
	w.ctx = ctxlog.Discard(context.Background())
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestDispatch_BurstCoalescesIntoOneRerun(t *testing.T) {
	runner := &fakeRunner{}
	var (
		mu      sync.Mutex
		changed []string
	)
	w := newTestWatcher(t, runner, Binding{
		Name:     "styles",
		Patterns: []string{"/p/src/scss/**/*.scss"},
		Task:     task.Scss,
		OnSuccess: func(_ context.Context, paths []string) {
			mu.Lock()
			defer mu.Unlock()
			changed = append(changed, paths...)
		},
	})

	for i := 0; i < 25; i++ {
		w.dispatch(fmt.Sprintf("/p/src/scss/f%d.scss", i%3))
	}

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, runner.count(), "a burst must produce exactly one rerun")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/p/src/scss/f0.scss", "/p/src/scss/f1.scss", "/p/src/scss/f2.scss"}, changed)
}

func TestDispatch_OneRunningOneQueued(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	w := newTestWatcher(t, runner, Binding{
		Name:     "markup",
		Patterns: []string{"/p/src/html/**/*.html"},
		Task:     task.HTML,
	})

	w.dispatch("/p/src/html/index.html")
	b := w.bindings[0]
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.running
	}, time.Second, 5*time.Millisecond)

	// Two separate bursts while the first run is blocked queue a single rerun.
	for burst := 0; burst < 2; burst++ {
		for i := 0; i < 5; i++ {
			w.dispatch("/p/src/html/about.html")
		}
		time.Sleep(80 * time.Millisecond)
	}
	b.mu.Lock()
	assert.True(t, b.pending)
	b.mu.Unlock()

	runner.gate <- struct{}{}
	runner.gate <- struct{}{}

	require.Eventually(t, func() bool { return runner.count() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, runner.count())

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.False(t, b.running)
	assert.False(t, b.pending)
}

func TestDispatch_FailureSkipsNotification(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	notified := make(chan struct{}, 1)
	w := newTestWatcher(t, runner, Binding{
		Name:      "assets",
		Patterns:  []string{"/p/src/assets/**/*"},
		Task:      task.Assets,
		OnSuccess: func(context.Context, []string) { notified <- struct{}{} },
	})

	w.dispatch("/p/src/assets/img/a.png")
	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

	select {
	case <-notified:
		t.Fatal("a failed rerun must not notify")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatch_RoutesByPattern(t *testing.T) {
	runner := &fakeRunner{}
	w := newTestWatcher(t, runner,
		Binding{Name: "styles", Patterns: []string{"/p/src/scss/**/*.scss"}, Task: task.Scss},
		Binding{Name: "vendor", Patterns: []string{"/p/vendor/**/*", "/p/package.json"}, Task: task.Vendor},
	)

	w.dispatch("/p/package.json")
	w.dispatch("/p/src/scss/readme.txt")

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []task.ID{task.Vendor}, runner.runs)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Runner: &fakeRunner{}, Bindings: []Binding{{Name: "bad", Patterns: []string{"/p/["}, Task: task.Scss}}})
	require.Error(t, err)
}

func TestWatchRoots(t *testing.T) {
	bindings := []*binding{
		{Binding: Binding{Patterns: []string{"/p/src/scss/**/*.scss", "/p/src/html/*.html"}}},
		{Binding: Binding{Patterns: []string{"/p/src/scss/**/_*.scss", "/p/package.json"}}},
	}
	recursive, single := watchRoots(bindings)
	assert.Equal(t, []string{"/p/src/html", "/p/src/scss"}, recursive)
	assert.Equal(t, []string{"/p"}, single)
}

func TestWatcher_FileBurstTriggersOneRerun(t *testing.T) {
	dir := t.TempDir()
	scss := filepath.Join(dir, "src", "scss")
	require.NoError(t, os.MkdirAll(scss, 0o755))
	file := filepath.Join(scss, "app.scss")
	require.NoError(t, os.WriteFile(file, []byte("a{}"), 0o644))

	runner := &fakeRunner{}
	w, err := New(Config{
		Runner:   runner,
		Debounce: 50 * time.Millisecond,
		Bindings: []Binding{{Name: "styles", Patterns: []string{filepath.Join(scss, "**", "*.scss")}, Task: task.Scss}},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctxlog.Discard(context.Background())))
	defer func() { _ = w.Stop() }()

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(file, []byte(fmt.Sprintf("a{b:%d}", i)), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return runner.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, runner.count())
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	assets := filepath.Join(dir, "assets")
	require.NoError(t, os.MkdirAll(assets, 0o755))

	runner := &fakeRunner{}
	w, err := New(Config{
		Runner:   runner,
		Debounce: 20 * time.Millisecond,
		Bindings: []Binding{{Name: "assets", Patterns: []string{filepath.Join(assets, "**", "*.png")}, Task: task.Assets}},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctxlog.Discard(context.Background())))
	defer func() { _ = w.Stop() }()

	sub := filepath.Join(assets, "img")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "logo.png"), []byte("png"), 0o644))

	require.Eventually(t, func() bool { return runner.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_MissingRootIsSkipped(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{
		Runner:   &fakeRunner{},
		Bindings: []Binding{{Name: "styles", Patterns: []string{filepath.Join(dir, "nope", "**", "*.scss")}, Task: task.Scss}},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctxlog.Discard(context.Background())))
	require.NoError(t, w.Stop())
}
