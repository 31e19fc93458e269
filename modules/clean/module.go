package clean

import (
	"context"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/fsutil"
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Trees lists the delete-tree tasks and the directory each removes.
	Trees []task.Target
}

// Register defines one delete-tree task per target.
func (m *Module) Register(r *registry.Registry) error {
	for _, t := range m.Trees {
		dir := t.Dir
		err := r.Define(t.ID, "Delete "+dir, registry.Step(func(ctx context.Context) error {
			if err := fsutil.RemoveTree(dir); err != nil {
				return err
			}
			ctxlog.FromContext(ctx).Debug("Tree removed.", "dir", dir)
			return nil
		}))
		if err != nil {
			return err
		}
	}
	return nil
}
