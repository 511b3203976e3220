package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

func TestProgramTable(t *testing.T) {
	p := ast.NewProgram()
	require.NoError(t, p.AddFlow(&ast.Flow{Name: "f"}))
	require.NoError(t, p.AddFlow(&ast.Flow{Name: "g"}))

	f, ok := p.Flow("f")
	require.True(t, ok)
	assert.Equal(t, api.FlowName("f"), f.Name)

	idx, ok := p.FlowIndex("g")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, api.FlowName("g"), p.FlowAt(idx).Name)

	_, ok = p.Flow("missing")
	assert.False(t, ok)
	assert.Equal(t, []api.FlowName{"f", "g"}, p.Names())
}

func TestProgramDuplicateFlow(t *testing.T) {
	p := ast.NewProgram()
	require.NoError(t, p.AddFlow(&ast.Flow{Name: "f"}))
	assert.ErrorIs(t, p.AddFlow(&ast.Flow{Name: "f"}),
		ast.ErrDuplicateFlow)
}

func TestWalkPreOrder(t *testing.T) {
	root := &ast.Node{
		Kind: ast.KindSequence,
		ID:   "f.0",
		Children: []*ast.Node{
			{Kind: ast.KindAtomic, ID: "f.1", Step: "a"},
			{
				Kind: ast.KindBranch,
				ID:   "f.2",
				Cases: []ast.BranchCase{{
					Label: "ok",
					Node: &ast.Node{
						Kind: ast.KindAtomic, ID: "f.3", Step: "b",
					},
				}},
			},
		},
	}

	var visited []api.NodeID
	ast.Walk(root, func(n *ast.Node) bool {
		visited = append(visited, n.ID)
		return true
	})
	assert.Equal(t,
		[]api.NodeID{"f.0", "f.1", "f.2", "f.3"}, visited)
}

func TestWalkVisitsModifierSubtrees(t *testing.T) {
	root := &ast.Node{
		Kind: ast.KindTimeout,
		ID:   "f.0",
		Timeout: &ast.TimeoutSpec{
			Fallback: &ast.Node{Kind: ast.KindAtomic, ID: "f.2"},
		},
		Catch: &ast.CatchSpec{
			Handler: &ast.Node{Kind: ast.KindAtomic, ID: "f.3"},
		},
		Children: []*ast.Node{
			{Kind: ast.KindAtomic, ID: "f.1"},
		},
	}

	var visited []api.NodeID
	ast.Walk(root, func(n *ast.Node) bool {
		visited = append(visited, n.ID)
		return true
	})
	assert.ElementsMatch(t,
		[]api.NodeID{"f.0", "f.1", "f.2", "f.3"}, visited)
}

func TestWalkStops(t *testing.T) {
	root := &ast.Node{
		Kind: ast.KindSequence,
		ID:   "f.0",
		Children: []*ast.Node{
			{Kind: ast.KindAtomic, ID: "f.1"},
			{Kind: ast.KindAtomic, ID: "f.2"},
		},
	}

	count := 0
	ast.Walk(root, func(n *ast.Node) bool {
		count++
		return n.ID != "f.1"
	})
	assert.Equal(t, 2, count)
}

func TestChild(t *testing.T) {
	wrapped := &ast.Node{
		Kind:     ast.KindDetach,
		Children: []*ast.Node{{Kind: ast.KindAtomic, Step: "a"}},
	}
	assert.Equal(t, api.StepName("a"), wrapped.Child().Step)

	leaf := &ast.Node{Kind: ast.KindAtomic}
	assert.Nil(t, leaf.Child())
}
