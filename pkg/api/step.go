package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type (
	FlowName string
	NodeID   string
	StepName string
	Status   string

	// StepResult captures the outcome of a single step invocation
	StepResult struct {
		Value     any       `json:"value,omitempty"`
		Error     string    `json:"error,omitempty"`
		Status    Status    `json:"status"`
		StartedAt time.Time `json:"started_at"`
		EndedAt   time.Time `json:"ended_at"`
	}

	// StepHandler is the host-supplied body of an atomic step. The input
	// is the value produced by the preceding step, or nil at flow entry.
	// Handlers must observe ctx cancellation cooperatively
	StepHandler func(ctx context.Context, input any) (any, error)

	// Predicate evaluates an opaque guard or branch condition
	Predicate func(ctx context.Context, input any) (bool, error)

	// Registry resolves step and predicate names at execution time.
	// Steps and predicates occupy separate namespaces
	Registry interface {
		ResolveStep(name StepName) (StepHandler, error)
		ResolvePredicate(name StepName) (Predicate, error)
	}

	// HandlerRegistry is a map-backed Registry safe for concurrent use
	HandlerRegistry struct {
		mu         sync.RWMutex
		steps      map[StepName]StepHandler
		predicates map[StepName]Predicate
	}
)

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

var (
	ErrStepNotFound      = errors.New("step handler not registered")
	ErrPredicateNotFound = errors.New("predicate not registered")
)

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		steps:      map[StepName]StepHandler{},
		predicates: map[StepName]Predicate{},
	}
}

// RegisterStep binds a handler to a step name, replacing any previous
// binding
func (r *HandlerRegistry) RegisterStep(name StepName, h StepHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[name] = h
}

// RegisterPredicate binds a predicate to a name in the predicate
// namespace
func (r *HandlerRegistry) RegisterPredicate(name StepName, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = p
}

func (r *HandlerRegistry) ResolveStep(name StepName) (StepHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.steps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, name)
	}
	return h, nil
}

func (r *HandlerRegistry) ResolvePredicate(
	name StepName,
) (Predicate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPredicateNotFound, name)
	}
	return p, nil
}

func (sr *StepResult) Succeeded() bool {
	return sr.Status == StatusSuccess
}

func (sr *StepResult) Failed() bool {
	return sr.Status == StatusError
}

func (sr *StepResult) Duration() time.Duration {
	return sr.EndedAt.Sub(sr.StartedAt)
}
