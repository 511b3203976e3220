package policy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/flowscript/internal/policy"
)

var testKey = policy.Key{Flow: "checkout", Node: "checkout.3"}

func TestMemoryGetMissing(t *testing.T) {
	s := policy.NewMemoryStore()
	st, err := s.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestMemoryCreateIfAbsent(t *testing.T) {
	s := policy.NewMemoryStore()
	ctx := context.Background()

	next := &policy.State{Breaker: policy.BreakerClosed, Failures: 1}
	ok, err := s.CompareAndSwap(ctx, testKey, nil, next)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second create against the same key loses
	ok, err = s.CompareAndSwap(ctx, testKey, nil, &policy.State{})
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Failures)
}

func TestMemorySwapRequiresCurrentSnapshot(t *testing.T) {
	s := policy.NewMemoryStore()
	ctx := context.Background()

	first := &policy.State{Failures: 1}
	_, err := s.CompareAndSwap(ctx, testKey, nil, first)
	require.NoError(t, err)

	cur, err := s.Get(ctx, testKey)
	require.NoError(t, err)

	next := cur.Clone()
	next.Failures = 2
	ok, err := s.CompareAndSwap(ctx, testKey, cur, next)
	require.NoError(t, err)
	assert.True(t, ok)

	// the stale snapshot no longer matches
	ok, err = s.CompareAndSwap(ctx, testKey, cur, &policy.State{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	s := policy.NewMemoryStore()
	ctx := context.Background()
	other := policy.Key{Flow: "checkout", Node: "checkout.9"}

	_, err := s.CompareAndSwap(ctx, testKey, nil,
		&policy.State{Failures: 1})
	require.NoError(t, err)

	st, err := s.Get(ctx, other)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestMemoryConcurrentIncrements(t *testing.T) {
	s := policy.NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, err := s.Get(ctx, testKey)
				require.NoError(t, err)
				next := cur.Clone()
				next.Failures++
				ok, err := s.CompareAndSwap(ctx, testKey, cur, next)
				require.NoError(t, err)
				if ok {
					return
				}
			}
		}()
	}
	wg.Wait()

	st, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 32, st.Failures)
}

func TestCloneNil(t *testing.T) {
	var st *policy.State
	dup := st.Clone()
	require.NotNil(t, dup)
	assert.Zero(t, dup.Failures)
}

func TestCloneIsDetached(t *testing.T) {
	st := &policy.State{
		Breaker:  policy.BreakerOpen,
		OpenedAt: time.Now(),
	}
	dup := st.Clone()
	dup.Breaker = policy.BreakerClosed
	assert.Equal(t, policy.BreakerOpen, st.Breaker)
}
