package app

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/sitegridgo/internal/include"
	"github.com/vk/sitegridgo/internal/sass"
	"github.com/vk/sitegridgo/internal/task"
)

// passthroughCompiler treats SCSS sources as plain CSS.
type passthroughCompiler struct{}

func (passthroughCompiler) Compile(_ context.Context, req sass.Request) (sass.Result, error) {
	return sass.Result{CSS: req.Source}, nil
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newProject lays out a small site using the default paths.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/scss/app.scss":             "body {\n  margin-left: 10px;\n  color: red;\n}\n",
		"src/scss/_vars.scss":           "$x: 1;\n",
		"src/html/index.html":           "<html>\n  <body>\n    @@include('header.html', {\"title\": \"Home\"})\n  </body>\n</html>\n",
		"src/html/docs/guide.html":      "<p>guide</p>\n",
		"src/partials/header.html":      "<h1>@@title</h1>",
		"src/assets/img/logo.png":       "png",
		"package.json":                  `{"dependencies": {"lib": "^1.0.0"}}`,
		"node_modules/lib/dist/lib.js":  "var lib;",
		"node_modules/lib/README.md":    "# lib",
		"node_modules/lib/package.json": `{"name": "lib"}`,
	}
	for rel, content := range files {
		write(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
	return root
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestNewApp_RegistersEveryTask(t *testing.T) {
	a, _ := SetupAppTest(t, newProject(t), WithCompiler(passthroughCompiler{}))

	for _, id := range task.All() {
		_, ok := a.Registry().Lookup(id)
		assert.True(t, ok, "task %s is not registered", id)
	}
	assert.Equal(t, len(task.All()), a.Registry().Len())
}

func TestNewApp_PanicsOnConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"unknown browsers", `styles { browsers = "ie 6" }`},
		{"syntax error", `styles {`},
		{"unknown role", `paths "staging" { base = "x" }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newProject(t)
			write(t, filepath.Join(root, "sitegrid.hcl"), tt.config)
			assert.Panics(t, func() {
				SetupAppTest(t, root, WithCompiler(passthroughCompiler{}))
			})
		})
	}
}

func TestBuildDist(t *testing.T) {
	root := newProject(t)
	a, _ := SetupAppTest(t, root, WithCompiler(passthroughCompiler{}))
	ctx := context.Background()
	dist := filepath.Join(root, "dist")

	require.NoError(t, a.Run(ctx, task.BuildDist))
	first := snapshot(t, dist)

	assert.Contains(t, first, "css/app.css")
	assert.Contains(t, first["css/app.css"], "margin-left:10px")
	assert.NotContains(t, first, "css/_vars.css")
	assert.Contains(t, first["html/index.html"], "<h1>Home</h1>")
	assert.NotContains(t, first["html/index.html"], "@@include")
	assert.Contains(t, first, "html/docs/guide.html")
	assert.Equal(t, "png", first["assets/img/logo.png"])
	assert.Equal(t, "var lib;", first["vendor/lib/dist/lib.js"])
	assert.NotContains(t, first, "vendor/lib/README.md")

	// A stray file from an earlier build is removed by the clean step.
	write(t, filepath.Join(dist, "stale.txt"), "old")

	require.NoError(t, a.Run(ctx, task.BuildDist))
	assert.Equal(t, first, snapshot(t, dist), "building twice must produce identical trees")
}

func TestBuildDev_Beautified(t *testing.T) {
	root := newProject(t)
	write(t, filepath.Join(root, "src/scss/app.scss"), "body{color:red}")
	a, _ := SetupAppTest(t, root, WithCompiler(passthroughCompiler{}))

	require.NoError(t, a.Run(context.Background(), task.BuildDev))

	tree := snapshot(t, filepath.Join(root, "html"))
	assert.Contains(t, tree["css/app.css"], "color: red;")
	assert.Contains(t, tree["index.html"], "<h1>Home</h1>")
	assert.Contains(t, tree, "vendor/lib/dist/lib.js")
}

func TestBuild_MissingPartialFailsWithoutOutput(t *testing.T) {
	root := newProject(t)
	write(t, filepath.Join(root, "src/html/broken.html"), "@@include('nope.html')")
	a, logs := SetupAppTest(t, root, WithCompiler(passthroughCompiler{}))

	err := a.Run(context.Background(), task.BuildDist)
	require.Error(t, err)
	assert.ErrorIs(t, err, include.ErrPartialNotFound)
	assert.Contains(t, err.Error(), string(task.CopyDistHTML))

	assert.NoDirExists(t, filepath.Join(root, "dist", "html"))
	assert.NoDirExists(t, filepath.Join(root, "dist", "assets"), "the series stops at the failing step")
	assert.Contains(t, logs.String(), "Task failed")
}

func TestServeBuildThenRTL(t *testing.T) {
	root := newProject(t)
	a, _ := SetupAppTest(t, root, WithCompiler(passthroughCompiler{}))
	ctx := context.Background()

	require.NoError(t, a.Run(ctx, task.ServeBuild))
	require.NoError(t, a.Run(ctx, task.BuildRTL))

	css := filepath.Join(root, ".temp", "css")
	rtl, err := os.ReadFile(filepath.Join(css, "app.rtl.css"))
	require.NoError(t, err)
	assert.Contains(t, string(rtl), "margin-right: 10px")

	assert.FileExists(t, filepath.Join(root, ".temp", "index.html"))
	assert.FileExists(t, filepath.Join(root, ".temp", "vendor", "lib", "dist", "lib.js"))
}

func TestList(t *testing.T) {
	a, _ := SetupAppTest(t, newProject(t), WithCompiler(passthroughCompiler{}))
	var buf bytes.Buffer
	require.NoError(t, a.List(&buf))

	out := buf.String()
	assert.Contains(t, out, "serve (default)")
	assert.Contains(t, out, "build:dist")
	assert.Contains(t, out, "parallel")
	assert.Contains(t, out, "clean:dist, copy:dist:css")
	assert.Contains(t, out, "USED BY")
	assert.Regexp(t, `(?m)^scss\s+step\s+serve:build\s`, out)
	assert.Regexp(t, `(?m)^build:dev\s+series\s+build\s`, out)
	assert.Regexp(t, `(?m)^build\s+parallel\s+-\s`, out)
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Root)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = NewConfig(Config{LogFormat: "xml"})
	assert.Error(t, err)
	_, err = NewConfig(Config{LogLevel: "loud"})
	assert.Error(t, err)
	_, err = NewConfig(Config{Port: 70000})
	assert.Error(t, err)
}
