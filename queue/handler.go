package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// JobHandler defines the interface for executing a specific job type.
// Pipeline packages implement this interface for their job kinds, keeping
// the queue infrastructure decoupled from domain logic.
//
// Handlers decode their own payload from job.Payload and return the result
// document to store on the job. A returned error fails the job; there are
// no automatic retries.
type JobHandler interface {
	// Execute runs the job and returns the result to persist.
	// Handlers MUST respect ctx cancellation on long-running work.
	Execute(ctx context.Context, job *Job) (json.RawMessage, error)

	// Name returns the handler name (e.g., "summarize", "rag-index").
	// Used for handler registration and job routing.
	Name() string
}

// HandlerRegistry manages job handlers by name.
// Thread-safe for concurrent handler registration and lookup.
type HandlerRegistry struct {
	handlers map[string]JobHandler
	mu       sync.RWMutex
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]JobHandler),
	}
}

// Register adds a handler using its name.
// Panics if a handler is already registered with that name.
func (r *HandlerRegistry) Register(handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlerName := handler.Name()
	if _, exists := r.handlers[handlerName]; exists {
		panic(fmt.Sprintf("handler already registered for name: %s", handlerName))
	}
	r.handlers[handlerName] = handler
}

// Get retrieves the handler for a handler name.
// Returns nil if no handler is registered.
func (r *HandlerRegistry) Get(handlerName string) JobHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[handlerName]
}

// Has checks if a handler is registered for a name.
func (r *HandlerRegistry) Has(handlerName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[handlerName]
	return exists
}

// Names returns all registered handler names.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// JobExecutor runs a job and produces its result document.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) (json.RawMessage, error)
}

// RegistryExecutor adapts a HandlerRegistry to the JobExecutor interface.
type RegistryExecutor struct {
	registry *HandlerRegistry
}

// NewRegistryExecutor creates an executor backed by a handler registry.
func NewRegistryExecutor(registry *HandlerRegistry) *RegistryExecutor {
	return &RegistryExecutor{registry: registry}
}

// Execute implements JobExecutor by dispatching to registered handlers.
func (e *RegistryExecutor) Execute(ctx context.Context, job *Job) (json.RawMessage, error) {
	if job.HandlerName == "" {
		return nil, fmt.Errorf("job missing handler_name")
	}

	handler := e.registry.Get(job.HandlerName)
	if handler == nil {
		return nil, fmt.Errorf("no handler registered for handler name: %s", job.HandlerName)
	}

	return handler.Execute(ctx, job)
}
