package api

import (
	"context"
	"sync"
)

// Bindings holds the variable values introduced by :name annotations
// during one execution. Handlers reach them through their context
type Bindings struct {
	mu     sync.RWMutex
	values map[string]any
}

type bindingsKey struct{}

func NewBindings() *Bindings {
	return &Bindings{values: map[string]any{}}
}

func (b *Bindings) Set(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[name] = value
}

func (b *Bindings) Get(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// WithBindings attaches execution bindings to a handler context
func WithBindings(ctx context.Context, b *Bindings) context.Context {
	return context.WithValue(ctx, bindingsKey{}, b)
}

// BindingsFrom recovers the execution bindings, or nil outside an
// execution
func BindingsFrom(ctx context.Context) *Bindings {
	b, _ := ctx.Value(bindingsKey{}).(*Bindings)
	return b
}
