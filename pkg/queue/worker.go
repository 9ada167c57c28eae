package queue

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
)

// Worker polls a Manager and runs tasks in the background.
// Several workers, in one or many processes, may share a store: exclusivity
// comes from the store's atomic claim, not from the worker.
type Worker struct {
	manager  *Manager
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup // run loop plus draining goroutines
	mu       sync.Mutex     // serializes Start and Stop
	stopMu   sync.Mutex     // orders wg.Add against Stop's wg.Wait

	pullInterval time.Duration
	maxTries     int
	logger       *slog.Logger

	cancel   context.CancelFunc
	stopping atomic.Bool

	processed atomic.Int64
	failed    atomic.Int64
}

// NewWorker creates a new task worker
func NewWorker(manager *Manager, opts ...WorkerOption) (*Worker, error) {
	if manager == nil {
		return nil, ErrManagerNil
	}

	options := &workerOptions{
		pullInterval:       time.Second,
		maxConcurrentTasks: 1,
		maxTries:           1,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	id := uuid.New()

	return &Worker{
		manager:      manager,
		workerID:     id,
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pullInterval: options.pullInterval,
		maxTries:     options.maxTries,
		logger:       options.logger.With(logger.Component("queue.worker"), logger.WorkerID(id.String())),
	}, nil
}

// Start begins processing tasks in the background.
// A stopped worker may be started again.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrWorkerStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopping.Store(false)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(runCtx)
	}()

	_, hostname, pid := w.WorkerInfo()
	w.logger.Info("worker started",
		slog.String("hostname", hostname),
		slog.Int("pid", pid),
		slog.Int("max_concurrent", cap(w.sem)),
		slog.Int("max_tries", w.maxTries),
		slog.Duration("pull_interval", w.pullInterval))

	return nil
}

// Stop gracefully shuts down the worker, waiting for the polling loop and
// in-flight tasks.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return ErrWorkerNotStarted
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	w.cancel()
	w.cancel = nil

	w.logger.Info("worker stopping, waiting for active tasks to complete")

	w.wg.Wait()

	processed, failed := w.Stats()
	w.logger.Info("worker stopped",
		slog.Int64("processed", processed),
		slog.Int64("failed", failed))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main processing loop
func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Fill every free slot; each slot drains the queue until it is empty.
			for w.acquire() {
				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()
					w.drain(ctx)
				}()
			}
		}
	}
}

// acquire takes a concurrency slot and registers with the WaitGroup.
// Returns false when all slots are busy or the worker is stopping.
func (w *Worker) acquire() bool {
	select {
	case w.sem <- struct{}{}:
	default:
		return false
	}

	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	if w.stopping.Load() {
		<-w.sem
		return false
	}
	w.wg.Add(1)
	return true
}

// drain runs tasks until the queue is empty, the worker stops or the store fails
func (w *Worker) drain(ctx context.Context) {
	for !w.stopping.Load() {
		res, err := w.manager.RunOne(ctx, w.maxTries)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Error("failed to process task", logger.Error(err))
			}
			return
		}
		if !res.Claimed {
			return
		}

		w.processed.Add(1)
		if !res.Succeeded() {
			w.failed.Add(1)
		}
	}
}

// Stats returns how many tasks this worker processed and how many of them failed
func (w *Worker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

// WorkerInfo returns information about the worker
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}
