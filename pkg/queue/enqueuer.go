package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
)

// Enqueuer handles task enqueueing
type Enqueuer struct {
	store  Store
	logger *slog.Logger
}

// EnqueuerOption is a functional option for configuring an Enqueuer
type EnqueuerOption func(*Enqueuer)

// WithEnqueuerLogger sets the logger for the enqueuer
func WithEnqueuerLogger(l *slog.Logger) EnqueuerOption {
	return func(e *Enqueuer) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(store Store, opts ...EnqueuerOption) (*Enqueuer, error) {
	if store == nil {
		return nil, ErrRepositoryNil
	}

	e := &Enqueuer{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Enqueue marshals payload as JSON and adds a queued task of the given type.
// It returns the store-assigned task id.
func (e *Enqueuer) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	if payload == nil {
		return "", ErrPayloadNil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Join(ErrPayloadMarshal, fmt.Errorf("payload of type %T: %w", payload, err))
	}

	return e.EnqueueRaw(ctx, taskType, raw)
}

// EnqueueRaw adds a queued task whose payload is already encoded
func (e *Enqueuer) EnqueueRaw(ctx context.Context, taskType string, payload json.RawMessage) (string, error) {
	if taskType == "" {
		return "", ErrTaskTypeRequired
	}

	id, err := e.store.Create(ctx, &Task{
		Type:    taskType,
		Payload: payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create task %q: %w", taskType, NewStoreError("create", err))
	}

	e.logger.DebugContext(ctx, "task enqueued", logger.TaskID(id), logger.TaskType(taskType))

	return id, nil
}
