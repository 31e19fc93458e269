// Package styles registers the stylesheet tasks: SCSS compilation into each
// output tree, minification of the dist stylesheets and pretty-printing of
// the dev stylesheets.
package styles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/sitegridgo/internal/cssproc"
	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/fsutil"
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/sass"
	"github.com/vk/sitegridgo/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Source is the SCSS directory.
	Source string
	// IncludePaths are extra load paths for @use and @import.
	IncludePaths []string
	SourceMaps   bool

	Compiler  sass.Compiler
	Processor *cssproc.Processor

	// Compile lists the tasks that compile Source into a CSS directory.
	Compile []task.Target
	// Minify and Beautify rewrite every stylesheet under their directory in
	// place.
	Minify   []task.Target
	Beautify []task.Target
}

// Register defines every configured task.
func (m *Module) Register(r *registry.Registry) error {
	for _, t := range m.Compile {
		if err := r.Define(t.ID, "Compile SCSS into "+t.Dir, m.compileStep(t.Dir)); err != nil {
			return err
		}
	}
	for _, t := range m.Minify {
		if err := r.Define(t.ID, "Minify stylesheets in "+t.Dir, m.rewriteStep(t.Dir, m.Processor.Minify)); err != nil {
			return err
		}
	}
	for _, t := range m.Beautify {
		if err := r.Define(t.ID, "Beautify stylesheets in "+t.Dir, m.rewriteStep(t.Dir, m.Processor.Beautify)); err != nil {
			return err
		}
	}
	return nil
}

// IsPartial reports whether an SCSS file is only meant to be imported.
func IsPartial(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "_")
}

func (m *Module) compileStep(dest string) registry.Step {
	return func(ctx context.Context) error {
		logger := ctxlog.FromContext(ctx)

		files, err := fsutil.FindFilesByExtension(m.Source, ".scss")
		if err != nil {
			return fmt.Errorf("list stylesheets: %w", err)
		}

		var compiled, failed int
		for _, file := range files {
			if IsPartial(file) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			ok, err := m.compileFile(ctx, file, dest)
			if err != nil {
				return err
			}
			if ok {
				compiled++
			} else {
				failed++
			}
		}

		logger.Debug("Stylesheets compiled.", "compiled", compiled, "failed", failed, "dest", dest)
		return nil
	}
}

// compileFile compiles one entry stylesheet. Stylesheet errors are logged and
// reported as ok=false with the previous output left untouched; only I/O
// and compiler process failures are returned.
func (m *Module) compileFile(ctx context.Context, file, dest string) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	rel, err := filepath.Rel(m.Source, file)
	if err != nil {
		return false, err
	}
	outRel := strings.TrimSuffix(rel, filepath.Ext(rel)) + ".css"
	outPath := filepath.Join(dest, outRel)

	src, err := os.ReadFile(file)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", file, err)
	}

	res, err := m.Compiler.Compile(ctx, sass.Request{
		Filename:     file,
		Source:       string(src),
		IncludePaths: m.IncludePaths,
		SourceMap:    m.SourceMaps,
	})
	if err != nil {
		if sass.IsCompileError(err) {
			logger.Error("❌ Stylesheet failed to compile, keeping previous output.", "file", rel, "error", err)
			return false, nil
		}
		return false, err
	}

	var inputMap []byte
	if m.SourceMaps {
		inputMap = []byte(res.SourceMap)
	}
	logger.Debug("Prefixing stylesheet.", "file", outRel, "browsers", m.Processor.Browsers())
	css, cssMap, err := m.Processor.Prefix([]byte(res.CSS), outRel, inputMap)
	if err != nil {
		logger.Error("❌ Stylesheet failed to prefix, keeping previous output.", "file", rel, "error", err)
		return false, nil
	}

	if m.SourceMaps && len(cssMap) > 0 {
		mapName := filepath.Base(outPath) + ".map"
		if err := fsutil.WriteFileAtomic(outPath+".map", cssMap, 0o644); err != nil {
			return false, err
		}
		css = append(css, fmt.Sprintf("/*# sourceMappingURL=%s */\n", mapName)...)
	}
	if err := fsutil.WriteFileAtomic(outPath, css, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Module) rewriteStep(dir string, fn func([]byte, string) ([]byte, error)) registry.Step {
	return func(ctx context.Context) error {
		logger := ctxlog.FromContext(ctx)

		rels, err := fsutil.Glob(dir, "**/*.css")
		if err != nil {
			return err
		}
		for _, rel := range rels {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, filepath.FromSlash(rel))
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			out, err := fn(src, rel)
			if err != nil {
				return err
			}
			if err := fsutil.WriteFileAtomic(path, out, 0o644); err != nil {
				return err
			}
		}
		logger.Debug("Stylesheets rewritten.", "files", len(rels), "dir", dir)
		return nil
	}
}
