package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/sitegridgo/internal/config"
	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/task"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []task.ID
	fail map[task.ID]error
}

func (r *recordingRunner) Run(_ context.Context, id task.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, id)
	return r.fail[id]
}

func (r *recordingRunner) ran(id task.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.runs {
		if got == id {
			return true
		}
	}
	return false
}

type fakeNotifier struct {
	reloads int
	css     [][]string
}

func (n *fakeNotifier) Reload(context.Context) { n.reloads++ }

func (n *fakeNotifier) InjectCSS(_ context.Context, changed []string) {
	n.css = append(n.css, changed)
}

func serveOptions() config.Serve {
	return config.Serve{Host: "127.0.0.1", Port: 0, Debounce: 20 * time.Millisecond}
}

func TestServer_Bindings(t *testing.T) {
	paths := config.DefaultPaths().Resolved("/p")
	s := NewServer(&recordingRunner{}, paths, serveOptions())
	n := &fakeNotifier{}
	ctx := ctxlog.Discard(context.Background())

	byName := map[string]task.ID{}
	for _, b := range s.bindings(n) {
		byName[b.Name] = b.Task
		switch b.Name {
		case "styles":
			b.OnSuccess(ctx, []string{"/p/src/scss/app.scss"})
		case "markup", "assets":
			b.OnSuccess(ctx, nil)
		case "vendor":
			assert.Nil(t, b.OnSuccess, "vendor rebuilds do not notify browsers")
			assert.Contains(t, b.Patterns, "/p/package.json")
		}
	}

	assert.Equal(t, map[string]task.ID{
		"styles": task.Scss,
		"markup": task.HTML,
		"assets": task.Assets,
		"vendor": task.Vendor,
	}, byName)
	assert.Equal(t, 2, n.reloads)
	assert.Equal(t, [][]string{{"src/scss/app.scss"}}, n.css)
}

func TestServer_InitialBuildFailure(t *testing.T) {
	runner := &recordingRunner{fail: map[task.ID]error{task.ServeBuild: errors.New("boom")}}
	s := NewServer(runner, config.DefaultPaths().Resolved(t.TempDir()), serveOptions())

	err := s.Run(ctxlog.Discard(context.Background()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial build failed")
	assert.Equal(t, StateTerminated, s.State())
	assert.Empty(t, s.Addr())
}

func TestServer_Lifecycle(t *testing.T) {
	root := t.TempDir()
	paths := config.DefaultPaths().Resolved(root)
	for _, dir := range []string{paths.Source.Styles, paths.Source.Markup, paths.Temp.Base} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(paths.Temp.Base, "index.html"), []byte("<body></body>"), 0o644))

	runner := &recordingRunner{}
	s := NewServer(runner, paths, serveOptions())
	assert.Equal(t, StateIdle, s.State())

	ctx, cancel := context.WithCancel(ctxlog.Discard(context.Background()))
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("serve loop ended early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop never became ready")
	}
	assert.True(t, runner.ran(task.ServeBuild))
	assert.Equal(t, StateServing, s.State())

	resp, err := http.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, os.WriteFile(filepath.Join(paths.Source.Styles, "app.scss"), []byte("a{}"), 0o644))
	require.Eventually(t, func() bool { return runner.ran(task.Scss) }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.State() == StateServing }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop did not stop")
	}
	assert.Equal(t, StateTerminated, s.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "initial-build", StateInitialBuild.String())
	assert.Equal(t, "rebuilding", StateRebuilding.String())
	assert.Equal(t, "State(42)", State(42).String())
}
