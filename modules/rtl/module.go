// Package rtl registers the right-to-left stylesheet tasks. They work on the
// compiled stylesheets in one directory, writing a.rtl.css next to a.css.
package rtl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/fsutil"
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/rtlcss"
	"github.com/vk/sitegridgo/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Dir holds the stylesheets to mirror. Only its top level is read.
	Dir string
	// Flip and Clean are the task IDs to register.
	Flip  task.ID
	Clean task.ID
}

// Register defines the flip and clean tasks.
func (m *Module) Register(r *registry.Registry) error {
	if err := r.Define(m.Clean, "Delete generated RTL stylesheets in "+m.Dir, registry.Step(m.cleanStep)); err != nil {
		return err
	}
	return r.Define(m.Flip, "Generate RTL stylesheets in "+m.Dir, registry.Step(m.flipStep))
}

func (m *Module) cleanStep(ctx context.Context) error {
	n, err := fsutil.RemoveGlob(m.Dir, "*rtl.css")
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("RTL stylesheets removed.", "files", n)
	return nil
}

func (m *Module) flipStep(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	rels, err := fsutil.Glob(m.Dir, "*.css")
	if err != nil {
		return err
	}

	var written int
	for _, rel := range rels {
		if rtlcss.IsRTLName(rel) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(m.Dir, rel)
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out, err := rtlcss.Flip(src)
		if err != nil {
			logger.Error("❌ Stylesheet could not be mirrored, skipping.", "file", rel, "error", err)
			continue
		}
		if err := fsutil.WriteFileAtomic(filepath.Join(m.Dir, rtlcss.Name(rel)), out, 0o644); err != nil {
			return err
		}
		written++
	}
	logger.Debug("RTL stylesheets generated.", "files", written)
	return nil
}
