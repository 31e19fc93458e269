package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/dag"
	"github.com/vk/sitegridgo/internal/task"
)

// Validate checks that every composite references defined tasks only and that
// no composite reaches itself. It returns all reference errors at once.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	g := dag.New()
	for _, id := range r.order {
		g.AddNode(id.String())
	}

	var errs []error
	for _, id := range r.order {
		t := r.tasks[id]
		children := t.Children()
		if t.Kind() != "step" && len(children) == 0 {
			errs = append(errs, &ConfigError{ID: id, Reason: fmt.Sprintf("empty %s", t.Kind())})
		}
		for _, child := range children {
			if _, ok := r.tasks[child]; !ok {
				errs = append(errs, &ConfigError{ID: id, Reason: fmt.Sprintf("references undefined task %q", child)})
				continue
			}
			if err := g.AddEdge(child.String(), id.String()); err != nil {
				errs = append(errs, &ConfigError{ID: id, Reason: err.Error()})
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed: %w", errors.Join(errs...))
	}

	if err := g.DetectCycles(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}

	logger.Debug("Registry validation passed.", "tasks", len(r.order))
	return nil
}

// Order returns the registered IDs with sub-tasks before the composites that
// use them. Call it only on a validated registry.
func (r *Registry) Order() ([]task.ID, error) {
	g, err := r.graph()
	if err != nil {
		return nil, err
	}
	ids, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	return toIDs(ids), nil
}

// UsedBy returns the composites that reference id directly.
func (r *Registry) UsedBy(id task.ID) ([]task.ID, error) {
	g, err := r.graph()
	if err != nil {
		return nil, err
	}
	ids, err := g.Dependents(id.String())
	if err != nil {
		return nil, err
	}
	return toIDs(ids), nil
}

// graph links every sub-task to the composites that use it.
func (r *Registry) graph() (*dag.Graph, error) {
	g := dag.New()
	for _, id := range r.order {
		g.AddNode(id.String())
	}
	for _, id := range r.order {
		for _, child := range r.tasks[id].Children() {
			if err := g.AddEdge(child.String(), id.String()); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func toIDs(ids []string) []task.ID {
	out := make([]task.ID, len(ids))
	for i, id := range ids {
		out[i] = task.ID(id)
	}
	return out
}
