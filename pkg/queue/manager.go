package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
)

// Manager runs the claim -> execute -> finalize cycle for one task per call.
// It keeps no state between calls; any number of managers, in any number of
// processes, may share a store.
type Manager struct {
	store    Store
	registry *Registry
	logger   *slog.Logger
}

// ManagerOption is a functional option for configuring a Manager
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the manager
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a new Manager
func NewManager(store Store, registry *Registry, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, ErrRepositoryNil
	}
	if registry == nil {
		return nil, ErrRegistryNil
	}

	m := &Manager{
		store:    store,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("queue.manager"))

	return m, nil
}

// Store returns the underlying store
func (m *Manager) Store() Store {
	return m.store
}

// Registry returns the registry used to resolve task types
func (m *Manager) Registry() *Registry {
	return m.registry
}

// RunOne claims the oldest queued task, executes it with up to maxTries
// attempts and persists the outcome.
//
// When nothing is queued it returns a Result with Claimed == false and a nil
// error. Task-level failures (unknown type, invalid payload, exhausted
// attempts) are recorded on the task and reported through Result; only store
// failures are returned as errors.
func (m *Manager) RunOne(ctx context.Context, maxTries int) (Result, error) {
	if maxTries < 1 {
		maxTries = 1
	}

	task, err := m.store.ClaimNext(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to claim task: %w", NewStoreError("claim", err))
	}
	if task == nil {
		return Result{}, nil
	}

	log := m.logger.With(logger.TaskID(task.ID), logger.TaskType(task.Type))
	log.DebugContext(ctx, "claimed task")

	start := time.Now()
	outcome := m.execute(ctx, log, task, maxTries)

	res := Result{
		Claimed: true,
		TaskID:  task.ID,
		Type:    task.Type,
		Status:  outcome.Status,
		Message: outcome.Message,
	}

	// Finalize even if ctx was cancelled mid-execution, otherwise the task
	// would stay active forever.
	if err := m.store.Update(context.WithoutCancel(ctx), task.ID, Finalize(outcome)); err != nil {
		log.ErrorContext(ctx, "failed to finalize task",
			logger.Status(outcome.Status.String()),
			logger.Error(err))
		return res, fmt.Errorf("failed to finalize task %s: %w", task.ID, NewStoreError("update", err))
	}

	if outcome.Succeeded() {
		log.InfoContext(ctx, "task completed", logger.Duration(time.Since(start)))
	} else {
		log.WarnContext(ctx, "task failed",
			logger.Duration(time.Since(start)),
			slog.String("message", outcome.Message))
	}

	return res, nil
}

// execute resolves and runs the task. It never fails: every problem is
// turned into a failed outcome.
func (m *Manager) execute(ctx context.Context, log *slog.Logger, task *Task, maxTries int) (outcome Outcome) {
	factory, err := m.registry.Resolve(task.Type)
	if err != nil {
		log.ErrorContext(ctx, "no task registered for type", logger.Error(err))
		return Failed(err.Error(), nil)
	}

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "task panicked", slog.Any("panic", r))
			outcome = Failed(fmt.Sprintf("panic while executing task: %v", r), nil)
		}
	}()

	exec := factory(task.Clone())
	if exec == nil {
		return Failed(fmt.Sprintf("task factory for type %q returned nil", task.Type), nil)
	}

	if !exec.Valid() {
		msg := fmt.Sprintf("%s for task type %q", ErrInvalidPayload, task.Type)
		log.WarnContext(ctx, "task payload is not executable")
		return Failed(msg, nil)
	}

	// Execution is not tied to the caller's lifetime: a started task runs to
	// completion and is always finalized.
	outcome = exec.Execute(context.WithoutCancel(ctx), maxTries)

	switch outcome.Status {
	case StatusCompleted:
		outcome.Message = ""
	case StatusFailed:
		if outcome.Message == "" {
			outcome.Message = exec.ErrorMessage(false)
		}
		if outcome.Message == "" {
			outcome.Message = fmt.Sprintf("task type %q failed", task.Type)
		}
		log.DebugContext(ctx, "task error detail", slog.String("detail", exec.ErrorMessage(true)))
	default:
		outcome = Failed(fmt.Sprintf("task returned non-terminal status %q", outcome.Status), outcome.Output)
	}

	return outcome
}
