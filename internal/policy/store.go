// Package policy holds the mutable keyed runtime state that survives
// across invocations of the same compiled flow: circuit breaker
// counters and debounce/throttle timestamps. The store lives outside
// the AST so that flow definitions stay immutable and shareable, and it
// is passed through the execution context rather than held in process
// globals so engine instances never cross-contaminate.
package policy

import (
	"context"
	"sync"
	"time"

	"github.com/kode4food/flowscript/pkg/api"
)

type (
	// BreakerState is the circuit breaker lifecycle state
	BreakerState string

	// Key addresses one policy entry. Entries are shared by all
	// concurrent executions of the same flow
	Key struct {
		Flow api.FlowName
		Node api.NodeID
	}

	// State is a policy entry snapshot. Snapshots are immutable; writers
	// derive a new State and publish it with CompareAndSwap
	State struct {
		Breaker    BreakerState `json:"breaker,omitempty"`
		Failures   int          `json:"failures,omitempty"`
		OpenedAt   time.Time    `json:"opened_at,omitzero"`
		LastFireAt time.Time    `json:"last_fire_at,omitzero"`
		Seq        uint64       `json:"seq,omitempty"`
	}

	// Store provides linearized access to policy entries. All writes to
	// a key go through CompareAndSwap so that concurrent executions
	// never serialize against unrelated keys
	Store interface {
		// Get returns the current entry, or nil when none exists
		Get(ctx context.Context, key Key) (*State, error)

		// CompareAndSwap publishes next when the entry still matches
		// expected. A nil expected means "create only if absent". The
		// expected value must be a snapshot previously returned by Get
		CompareAndSwap(
			ctx context.Context, key Key, expected, next *State,
		) (bool, error)
	}

	// MemoryStore is the in-process Store used by default
	MemoryStore struct {
		entries sync.Map
	}
)

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*State, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, nil
	}
	return v.(*State), nil
}

func (s *MemoryStore) CompareAndSwap(
	_ context.Context, key Key, expected, next *State,
) (bool, error) {
	if expected == nil {
		_, loaded := s.entries.LoadOrStore(key, next)
		return !loaded, nil
	}
	return s.entries.CompareAndSwap(key, expected, next), nil
}

// Clone returns a copy of the snapshot for derivation
func (st *State) Clone() *State {
	if st == nil {
		return &State{}
	}
	dup := *st
	return &dup
}
