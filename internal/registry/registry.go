package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/task"
)

// Module is the interface that all build modules implement to contribute
// their tasks.
type Module interface {
	Register(r *Registry) error
}

// Body is what a task does when it runs. It is one of Step, Series or
// Parallel.
type Body interface {
	kind() string
}

// Step is a leaf task: a single transformation that returns once all of its
// file I/O has completed.
type Step func(ctx context.Context) error

// Series runs each sub-task to completion, strictly in order, and stops at
// the first failure.
type Series []task.ID

// Parallel starts every sub-task at once and completes when all of them
// have. A failure does not cancel siblings that are already running.
type Parallel []task.ID

func (Step) kind() string     { return "step" }
func (Series) kind() string   { return "series" }
func (Parallel) kind() string { return "parallel" }

// Task is a registered build task.
type Task struct {
	ID          task.ID
	Description string
	Body        Body
}

// Kind returns "step", "series" or "parallel".
func (t *Task) Kind() string { return t.Body.kind() }

// Children returns the sub-task IDs of a composite task, or nil for a step.
func (t *Task) Children() []task.ID {
	switch b := t.Body.(type) {
	case Series:
		return []task.ID(b)
	case Parallel:
		return []task.ID(b)
	}
	return nil
}

// ConfigError reports a task definition problem found at startup.
type ConfigError struct {
	ID     task.ID
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("task %q: %s", e.ID, e.Reason)
}

// Registry holds every task registered for a single application instance.
type Registry struct {
	tasks map[task.ID]*Task
	order []task.ID
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		tasks: make(map[task.ID]*Task),
	}
}

// Define registers a task. The ID must belong to the closed task set and
// must not have been registered before.
func (r *Registry) Define(id task.ID, description string, body Body) error {
	if !id.Known() {
		return &ConfigError{ID: id, Reason: "not a known task identifier"}
	}
	if body == nil {
		return &ConfigError{ID: id, Reason: "task body is nil"}
	}
	if step, ok := body.(Step); ok && step == nil {
		return &ConfigError{ID: id, Reason: "step function is nil"}
	}
	if _, exists := r.tasks[id]; exists {
		return &ConfigError{ID: id, Reason: "already registered"}
	}
	r.tasks[id] = &Task{ID: id, Description: description, Body: body}
	r.order = append(r.order, id)
	return nil
}

// Lookup returns the task registered under id.
func (r *Registry) Lookup(id task.ID) (*Task, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

// Tasks returns every registered task sorted by ID.
func (r *Registry) Tasks() []*Task {
	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int { return len(r.tasks) }

// RegisterModules registers every module in order and stops at the first
// failure.
func (r *Registry) RegisterModules(ctx context.Context, modules ...Module) error {
	logger := ctxlog.FromContext(ctx)
	for _, mod := range modules {
		before := r.Len()
		if err := mod.Register(r); err != nil {
			return fmt.Errorf("registering %T: %w", mod, err)
		}
		logger.Debug("Module registered.", "module", fmt.Sprintf("%T", mod), "tasks", r.Len()-before)
	}
	return nil
}
