package queue

import (
	"context"
	"fmt"
)

// Store is the persistence boundary of the queue.
//
// Only ClaimNext must be atomic: it is the sole operation that takes a record
// out of StatusQueued, and concurrent callers must never receive the same
// record. Create and Update are single-record writes scoped by id.
type Store interface {
	// Create persists a new task as StatusQueued with Created == Updated == now
	// and returns the store-assigned id. Status and timestamps on task are ignored.
	Create(ctx context.Context, task *Task) (string, error)

	// Update applies a partial write and stamps Updated. A status change is
	// conditional on the stored status being one of SourcesOf(upd.Status).
	// Returns ErrNotFound for unknown ids and ErrInvalidTransition when the
	// lifecycle forbids the change.
	Update(ctx context.Context, id string, upd Update) error

	// ClaimNext atomically moves the oldest queued task (by Created, then id)
	// to StatusActive and returns it. Returns (nil, nil) when nothing is queued.
	ClaimNext(ctx context.Context) (*Task, error)

	// Get returns a task by id or ErrNotFound
	Get(ctx context.Context, id string) (*Task, error)
}

// ValidateNewTask checks the fields a caller must supply to Create
func ValidateNewTask(task *Task) error {
	if task == nil {
		return ErrTaskNil
	}
	if task.Type == "" {
		return ErrTaskTypeRequired
	}
	return nil
}

// ValidateUpdate rejects writes that only ClaimNext or Create may perform.
// A record enters StatusQueued only at creation and StatusActive only through
// an atomic claim, so Update may only set terminal statuses.
func ValidateUpdate(upd Update) error {
	if upd.Status == "" {
		return nil
	}
	if !upd.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, upd.Status)
	}
	if !upd.Status.Terminal() {
		return fmt.Errorf("%w: status %q can only be set by the queue itself", ErrInvalidTransition, upd.Status)
	}
	return nil
}
