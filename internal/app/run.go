package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/executor"
	"github.com/vk/sitegridgo/internal/task"
)

// Run executes one task and everything it is composed of.
func (a *App) Run(ctx context.Context, id task.ID) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "task", id.String())

	start := time.Now()
	a.logger.Info("🚀 Starting build", "task", id.String())
	if err := a.executor.Run(ctx, id); err != nil {
		if step, ok := executor.FailedStep(err); ok {
			return fmt.Errorf("task %q failed at %q: %w", id, step, err)
		}
		return err
	}
	a.logger.Info("🏁 Build finished.", "task", id.String(), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// List prints every registered task with its kind, what it does and the
// composites that run it.
func (a *App) List(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tKIND\tUSED BY\tDESCRIPTION")
	for _, t := range a.registry.Tasks() {
		desc := t.Description
		if children := t.Children(); len(children) > 0 {
			names := make([]string, len(children))
			for i, c := range children {
				names[i] = c.String()
			}
			desc = fmt.Sprintf("%s (%s)", desc, strings.Join(names, ", "))
		}
		name := t.ID.String()
		if t.ID == task.Default {
			name += " (default)"
		}
		parents, err := a.registry.UsedBy(t.ID)
		if err != nil {
			return err
		}
		usedBy := "-"
		if len(parents) > 0 {
			names := make([]string, len(parents))
			for i, p := range parents {
				names[i] = p.String()
			}
			usedBy = strings.Join(names, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, t.Kind(), usedBy, desc)
	}
	return tw.Flush()
}
