// Package markup registers the HTML tasks: partial inclusion into each output
// tree and whitespace minification of the dist pages.
package markup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/fsutil"
	"github.com/vk/sitegridgo/internal/htmlmin"
	"github.com/vk/sitegridgo/internal/include"
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/task"
)

const pattern = "**/*.html"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Source is the directory of entry pages.
	Source   string
	Engine   *include.Engine
	Minifier *htmlmin.Minifier

	// Render lists the tasks that render Source into a markup directory.
	Render []task.Target
	// Minify rewrites every page under its directory in place.
	Minify []task.Target
}

// Register defines every configured task.
func (m *Module) Register(r *registry.Registry) error {
	for _, t := range m.Render {
		if err := r.Define(t.ID, "Render HTML with partials into "+t.Dir, m.renderStep(t.Dir)); err != nil {
			return err
		}
	}
	for _, t := range m.Minify {
		if err := r.Define(t.ID, "Minify HTML in "+t.Dir, m.minifyStep(t.Dir)); err != nil {
			return err
		}
	}
	return nil
}

type page struct {
	rel  string
	data []byte
}

// renderStep renders every page before writing any, so a missing partial
// leaves the destination untouched.
func (m *Module) renderStep(dest string) registry.Step {
	return func(ctx context.Context) error {
		logger := ctxlog.FromContext(ctx)

		rels, err := fsutil.Glob(m.Source, pattern)
		if err != nil {
			return err
		}

		pages := make([]page, 0, len(rels))
		for _, rel := range rels {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(m.Source, filepath.FromSlash(rel))
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			out, err := m.Engine.Render(rel, src)
			if err != nil {
				return err
			}
			pages = append(pages, page{rel: rel, data: out})
		}

		for _, p := range pages {
			if err := fsutil.WriteFileAtomic(filepath.Join(dest, filepath.FromSlash(p.rel)), p.data, 0o644); err != nil {
				return err
			}
		}
		logger.Debug("Pages rendered.", "pages", len(pages), "dest", dest)
		return nil
	}
}

func (m *Module) minifyStep(dir string) registry.Step {
	return func(ctx context.Context) error {
		logger := ctxlog.FromContext(ctx)

		rels, err := fsutil.Glob(dir, pattern)
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
			out, err := m.Minifier.Minify(rel, src)
			if err != nil {
				return err
			}
			if err := fsutil.WriteFileAtomic(path, out, 0o644); err != nil {
				return err
			}
		}
		logger.Debug("Pages minified.", "pages", len(rels), "dir", dir)
		return nil
	}
}
