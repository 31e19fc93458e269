package assets

import (
	"context"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/fsutil"
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/task"
)

// Pattern selects the files copied verbatim: anything with an extension.
const Pattern = "**/*.*"

// Module implements the registry.Module interface for this package.
type Module struct {
	Source string
	Copy   []task.Target
}

// Register defines one copy task per target.
func (m *Module) Register(r *registry.Registry) error {
	for _, t := range m.Copy {
		if err := r.Define(t.ID, "Copy static assets into "+t.Dir, m.copyStep(t.Dir)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) copyStep(dest string) registry.Step {
	return func(ctx context.Context) error {
		n, err := fsutil.CopyTree(m.Source, dest, Pattern)
		if err != nil {
			return err
		}
		ctxlog.FromContext(ctx).Debug("Assets copied.", "files", n, "dest", dest)
		return nil
	}
}
