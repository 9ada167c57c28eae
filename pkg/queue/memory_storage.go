package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage implements Store for testing and local development.
// A single mutex serializes every operation, which makes ClaimNext atomic.
type MemoryStorage struct {
	mu    sync.Mutex
	clock Clock
	tasks map[string]*memoryRecord
	seq   uint64

	// queued holds ids of queued tasks ordered by (Created, seq)
	queued []string
}

type memoryRecord struct {
	task *Task
	seq  uint64
}

// MemoryOption configures a MemoryStorage
type MemoryOption func(*MemoryStorage)

// WithMemoryClock overrides the timestamp source
func WithMemoryClock(c Clock) MemoryOption {
	return func(ms *MemoryStorage) {
		if c != nil {
			ms.clock = c
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	ms := &MemoryStorage{
		clock: DefaultClock(),
		tasks: make(map[string]*memoryRecord),
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// Create implements Store
func (ms *MemoryStorage) Create(ctx context.Context, task *Task) (string, error) {
	if err := ValidateNewTask(task); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", NewStoreError("create", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.clock.Now()
	record := task.Clone()
	record.ID = uuid.NewString()
	record.Status = StatusQueued
	record.Message = ""
	record.Output = nil
	record.Created = now
	record.Updated = now

	ms.seq++
	ms.tasks[record.ID] = &memoryRecord{task: record, seq: ms.seq}
	ms.insertQueued(record.ID)

	return record.ID, nil
}

// Update implements Store
func (ms *MemoryStorage) Update(ctx context.Context, id string, upd Update) error {
	if err := ValidateUpdate(upd); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewStoreError("update", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	task := rec.task

	if upd.Status != "" {
		if !CanTransition(task.Status, upd.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, upd.Status)
		}
		task.Status = upd.Status
	}
	if upd.Message != nil {
		task.Message = *upd.Message
	}
	if upd.Output != nil {
		task.Output = append([]byte(nil), upd.Output...)
	}
	task.Updated = ms.clock.Now()

	return nil
}

// ClaimNext implements Store
func (ms *MemoryStorage) ClaimNext(ctx context.Context) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewStoreError("claim", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if len(ms.queued) == 0 {
		return nil, nil
	}

	id := ms.queued[0]
	ms.queued = ms.queued[1:]

	task := ms.tasks[id].task
	task.Status = ClaimTarget
	task.Updated = ms.clock.Now()

	return task.Clone(), nil
}

// Get implements Store
func (ms *MemoryStorage) Get(ctx context.Context, id string) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewStoreError("get", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.task.Clone(), nil
}

// Len returns the number of stored tasks in the given status
func (ms *MemoryStorage) Len(status Status) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	n := 0
	for _, rec := range ms.tasks {
		if rec.task.Status == status {
			n++
		}
	}
	return n
}

// insertQueued keeps ms.queued sorted by (Created, seq).
// Callers must hold ms.mu.
func (ms *MemoryStorage) insertQueued(id string) {
	rec := ms.tasks[id]
	pos, _ := slices.BinarySearchFunc(ms.queued, rec, func(existing string, target *memoryRecord) int {
		e := ms.tasks[existing]
		if c := e.task.Created.Compare(target.task.Created); c != 0 {
			return c
		}
		switch {
		case e.seq < target.seq:
			return -1
		case e.seq > target.seq:
			return 1
		}
		return 0
	})
	ms.queued = slices.Insert(ms.queued, pos, id)
}
