package queue

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrRepositoryNil is returned when a nil store is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrRegistryNil is returned when a nil registry is provided
	ErrRegistryNil = errors.New("registry cannot be nil")

	// ErrManagerNil is returned when a worker is built without a manager
	ErrManagerNil = errors.New("manager cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrPayloadMarshal is returned when payload marshaling fails
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")

	// ErrTaskNil is returned when a store receives a nil task
	ErrTaskNil = errors.New("task cannot be nil")

	// ErrTaskTypeRequired is returned when a task or registration has an empty type
	ErrTaskTypeRequired = errors.New("task type is required")

	// ErrNilFactory is returned when registering a nil factory
	ErrNilFactory = errors.New("task factory cannot be nil")

	// ErrTaskAlreadyRegistered is returned when trying to register a duplicate task type
	ErrTaskAlreadyRegistered = errors.New("task type already registered")

	// ErrUnknownType is matched by every *UnknownTypeError
	ErrUnknownType = errors.New("no task registered for type")

	// ErrNotFound is returned when a task id does not exist in the store
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a write would move a task against its lifecycle
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrInvalidStatus is returned for status values outside the lifecycle
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidPayload is the failure recorded for tasks whose payload cannot be executed
	ErrInvalidPayload = errors.New("invalid task payload")

	// ErrWorkerStarted is returned when starting a running worker
	ErrWorkerStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned when stopping an idle worker
	ErrWorkerNotStarted = errors.New("worker not started")
)

// StoreError wraps a persistence failure. It is the only error kind RunOne
// propagates to its caller; task-level failures are recorded on the task.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// domainErrors are reported by stores as-is rather than as StoreError
var domainErrors = []error{
	ErrNotFound,
	ErrInvalidTransition,
	ErrInvalidStatus,
	ErrTaskNil,
	ErrTaskTypeRequired,
}

// NewStoreError wraps err unless it is nil, already wrapped, or a domain error
// that callers match with errors.Is.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err carries a *StoreError
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// UnknownTypeError is returned by Registry.Resolve for unregistered types
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("no task registered for type %q", e.Type)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}
