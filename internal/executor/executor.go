// Package executor runs registered tasks. Series bodies run their children
// one after another and stop at the first failure; Parallel bodies start
// every child and wait for all of them; Step bodies call the step function.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vk/sitegridgo/internal/ctxlog"
	"github.com/vk/sitegridgo/internal/registry"
	"github.com/vk/sitegridgo/internal/task"
)

// Runner runs a task by ID. The watcher and the app depend on this rather
// than on *Executor.
type Runner interface {
	Run(ctx context.Context, id task.ID) error
}

// TaskError records which task failed. Composites wrap the error of the
// failing child, so the chain reads from the entrypoint down to the step.
type TaskError struct {
	ID  task.ID
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.ID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// FailedStep returns the innermost task ID in err's chain.
func FailedStep(err error) (task.ID, bool) {
	var (
		id    task.ID
		found bool
	)
	for err != nil {
		var te *TaskError
		if !errors.As(err, &te) {
			break
		}
		id, found = te.ID, true
		err = te.Err
	}
	return id, found
}

type runIDKey struct{}

// RunID returns the identifier of the top-level run ctx belongs to.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Detach returns a context whose next Run starts a new run instead of
// joining the one ctx belongs to.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, runIDKey{}, "")
}

// Executor runs tasks from a validated registry.
type Executor struct {
	registry *registry.Registry

	// locks serializes runs of the same step so two writers never target
	// the same destination at once.
	locks sync.Map // task.ID -> *sync.Mutex
}

// New creates an executor over reg. reg must already be validated.
func New(reg *registry.Registry) *Executor {
	return &Executor{registry: reg}
}

// Run executes the task and everything it is composed of. Each call gets a
// fresh run ID unless ctx already carries one.
func (e *Executor) Run(ctx context.Context, id task.ID) error {
	if RunID(ctx) == "" {
		runID := uuid.NewString()
		ctx = context.WithValue(ctx, runIDKey{}, runID)
		ctx = ctxlog.With(ctx, "run_id", runID)
	}
	return e.run(ctx, id)
}

func (e *Executor) run(ctx context.Context, id task.ID) error {
	t, ok := e.registry.Lookup(id)
	if !ok {
		return &TaskError{ID: id, Err: errors.New("task is not registered")}
	}

	logger := ctxlog.FromContext(ctx).With("task", id.String())
	ctx = ctxlog.WithLogger(ctx, logger)

	start := time.Now()
	logger.Info("▶️ Starting task", "kind", t.Kind())

	var err error
	switch body := t.Body.(type) {
	case registry.Step:
		err = e.runStep(ctx, id, body)
	case registry.Series:
		err = e.runSeries(ctx, body)
	case registry.Parallel:
		err = e.runParallel(ctx, body)
	default:
		err = fmt.Errorf("unsupported task body %T", body)
	}

	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		logger.Error("❌ Task failed", "duration", elapsed, "error", err)
		return &TaskError{ID: id, Err: err}
	}
	logger.Info("✅ Task finished", "duration", elapsed)
	return nil
}

func (e *Executor) runStep(ctx context.Context, id task.ID, step registry.Step) error {
	mu, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()
	return step(ctx)
}

// runSeries stops at the first failing child; later children never start.
func (e *Executor) runSeries(ctx context.Context, ids registry.Series) error {
	for _, child := range ids {
		if err := e.run(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// runParallel waits for every child. errgroup.Group without a context does
// not cancel siblings; the first error is returned.
func (e *Executor) runParallel(ctx context.Context, ids registry.Parallel) error {
	var g errgroup.Group
	for _, child := range ids {
		g.Go(func() error {
			return e.run(ctx, child)
		})
	}
	return g.Wait()
}
