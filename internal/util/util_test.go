package util_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/flowscript/internal/util"
)

func TestSetBasics(t *testing.T) {
	s := util.SetOf("a", "b")
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))
	assert.False(t, s.IsEmpty())

	s.Add("c")
	assert.True(t, s.Contains("c"))
}

func TestSetAddNew(t *testing.T) {
	s := util.Set[string]{}
	assert.True(t, s.AddNew("a"))
	assert.False(t, s.AddNew("a"))
	assert.True(t, s.AddNew("b"))
	assert.Equal(t, 2, s.Len())
}

func TestLRUCacheHitAndMiss(t *testing.T) {
	c := util.NewLRUCache[int](4)
	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.Get("k", create)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = c.Get("k", create)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLRUCacheFailedCreateNotCached(t *testing.T) {
	c := util.NewLRUCache[int](4)
	boom := errors.New("boom")

	_, err := c.Get("k", func() (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	v, err := c.Get("k", func() (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestLRUCacheEviction(t *testing.T) {
	c := util.NewLRUCache[int](2)
	for i := 0; i < 3; i++ {
		_, err := c.Get(fmt.Sprintf("k%d", i), func() (int, error) {
			return i, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	// k0 was least recently used; recreating it calls the constructor
	calls := 0
	_, err := c.Get("k0", func() (int, error) {
		calls++
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestStateTransitions(t *testing.T) {
	table := util.StateTransitions[string]{
		"new":     util.SetOf("running"),
		"running": util.SetOf("done"),
		"done":    util.Set[string]{},
	}

	assert.True(t, table.CanTransition("new", "running"))
	assert.False(t, table.CanTransition("new", "done"))
	assert.False(t, table.CanTransition("missing", "running"))
	assert.True(t, table.IsTerminal("done"))
	assert.False(t, table.IsTerminal("running"))
}
