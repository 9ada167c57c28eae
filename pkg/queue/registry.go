package queue

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps task types to the factories that build their Executable.
// It is usually populated once at startup and read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a factory to a task type
func (r *Registry) Register(taskType string, factory Factory) error {
	if taskType == "" {
		return ErrTaskTypeRequired
	}
	if factory == nil {
		return ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[taskType]; exists {
		return fmt.Errorf("%w: %q", ErrTaskAlreadyRegistered, taskType)
	}
	r.factories[taskType] = factory
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(taskType string, factory Factory) {
	if err := r.Register(taskType, factory); err != nil {
		panic(fmt.Sprintf("failed to register task type: %v", err))
	}
}

// Resolve returns the factory for taskType or an *UnknownTypeError
func (r *Registry) Resolve(taskType string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[taskType]
	if !ok {
		return nil, &UnknownTypeError{Type: taskType}
	}
	return factory, nil
}

// Types returns the registered task types, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
