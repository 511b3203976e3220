package parser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/flowscript/internal/lexer"
	"github.com/kode4food/flowscript/internal/parser"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

func parseOne(t *testing.T, src string) *ast.Node {
	tokens, err := lexer.Tokenize(src)
	require.NoError(t, err)
	prog, err := parser.Parse(tokens)
	require.NoError(t, err)
	require.Len(t, prog.Flows, 1)
	return prog.Flows[0].Root
}

func parseError(t *testing.T, src string) *api.ParseError {
	tokens, err := lexer.Tokenize(src)
	require.NoError(t, err)
	_, err = parser.Parse(tokens)
	require.Error(t, err)

	var parseErr *api.ParseError
	require.ErrorAs(t, err, &parseErr)
	return parseErr
}

func TestSequence(t *testing.T) {
	root := parseOne(t, "f = a -> b -> c")
	require.Equal(t, ast.KindSequence, root.Kind)
	require.Len(t, root.Children, 3)
	assert.Equal(t, api.StepName("a"), root.Children[0].Step)
	assert.Equal(t, api.StepName("c"), root.Children[2].Step)
}

func TestSagaBindsTighterThanSequence(t *testing.T) {
	root := parseOne(t, "f = a && b -> c")
	require.Equal(t, ast.KindSequence, root.Kind)
	require.Len(t, root.Children, 2)
	assert.Equal(t, ast.KindSaga, root.Children[0].Kind)
	assert.Len(t, root.Children[0].Children, 2)
}

func TestFork(t *testing.T) {
	root := parseOne(t, "f = a | b | c")
	require.Equal(t, ast.KindParallel, root.Kind)
	assert.Len(t, root.Children, 3)
}

func TestBarrierArms(t *testing.T) {
	root := parseOne(t, "f = [a -> b | c]")
	require.Equal(t, ast.KindBarrier, root.Kind)
	require.Len(t, root.Children, 2)
	assert.Equal(t, ast.KindSequence, root.Children[0].Kind)
}

func TestForkJoinShorthand(t *testing.T) {
	root := parseOne(t, "f = a &| b &| c")
	require.Equal(t, ast.KindBarrier, root.Kind)
	assert.Len(t, root.Children, 3)
}

func TestRace(t *testing.T) {
	root := parseOne(t, "f = <a | b>")
	require.Equal(t, ast.KindRace, root.Kind)
	assert.Len(t, root.Children, 2)
}

func TestRaceNeedsTwoArms(t *testing.T) {
	perr := parseError(t, "f = <a>")
	assert.Contains(t, perr.Expected, "at least 2")
}

func TestBranch(t *testing.T) {
	root := parseOne(t, "f = { ok: a, err: b, _: c }")
	require.Equal(t, ast.KindBranch, root.Kind)
	require.Len(t, root.Cases, 3)
	assert.Equal(t, "ok", root.Cases[0].Label)
	assert.Equal(t, ast.DefaultCase, root.Cases[2].Label)
}

func TestBranchDuplicateLabel(t *testing.T) {
	perr := parseError(t, "f = { ok: a, ok: b }")
	assert.Contains(t, perr.Expected, "unique case label")
}

func TestStateMachineShape(t *testing.T) {
	root := parseOne(t, "f = { idle:start => run, run:stop => idle }")
	require.Equal(t, ast.KindStateMachine, root.Kind)
	require.Len(t, root.Transitions, 2)
	assert.Equal(t, ast.Transition{
		From:  "idle",
		Event: "start",
		To:    "run",
	}, root.Transitions[0])
}

func TestBracedMixedShapeIsBranch(t *testing.T) {
	root := parseOne(t, "f = { ok: a -> b }")
	assert.Equal(t, ast.KindBranch, root.Kind)
}

func TestQuantifiers(t *testing.T) {
	star := parseOne(t, "f = a*")
	require.Equal(t, ast.KindLoop, star.Kind)
	assert.Equal(t, &ast.LoopSpec{Min: 0, Max: -1}, star.Loop)

	plus := parseOne(t, "f = a+")
	assert.Equal(t, &ast.LoopSpec{Min: 1, Max: -1}, plus.Loop)

	opt := parseOne(t, "f = a?")
	assert.Equal(t, &ast.LoopSpec{Min: 0, Max: 1}, opt.Loop)

	rng := parseOne(t, "f = a{2,4}")
	assert.Equal(t, &ast.LoopSpec{Min: 2, Max: 4}, rng.Loop)
}

func TestRangeLoopBounds(t *testing.T) {
	perr := parseError(t, "f = a{4,2}")
	assert.Contains(t, perr.Expected, "min <= max")
}

func TestRetryDefaults(t *testing.T) {
	root := parseOne(t, "f = a@3")
	require.Equal(t, ast.KindRetry, root.Kind)
	assert.Equal(t, &ast.RetrySpec{
		MaxAttempts: 3,
		Strategy:    ast.RetryFixed,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
	}, root.Retry)
}

func TestRetryStrategyAndBase(t *testing.T) {
	root := parseOne(t, "f = a@5:exp:200ms")
	assert.Equal(t, ast.RetryExponential, root.Retry.Strategy)
	assert.Equal(t, 200*time.Millisecond, root.Retry.BaseDelay)
}

func TestRetryBadStrategy(t *testing.T) {
	perr := parseError(t, "f = a@3:sometimes")
	assert.Contains(t, perr.Expected, "retry strategy")
}

func TestTimeout(t *testing.T) {
	root := parseOne(t, "f = a~5s")
	require.Equal(t, ast.KindTimeout, root.Kind)
	assert.Equal(t, 5*time.Second, root.Timeout.Limit)
	assert.Nil(t, root.Timeout.Fallback)
}

func TestTimeoutFallback(t *testing.T) {
	root := parseOne(t, "f = a~2s:cached")
	require.NotNil(t, root.Timeout.Fallback)
	assert.Equal(t, api.StepName("cached"), root.Timeout.Fallback.Step)
}

func TestGuard(t *testing.T) {
	root := parseOne(t, "f = a?[isReady]")
	require.Equal(t, ast.KindGuard, root.Kind)
	assert.Equal(t, api.StepName("isReady"), root.Guard)
	assert.Equal(t, api.StepName("a"), root.Child().Step)
}

func TestBreaker(t *testing.T) {
	root := parseOne(t, "f = a@@{2,30s}")
	require.Equal(t, ast.KindBreaker, root.Kind)
	assert.Equal(t, &ast.BreakerSpec{
		Threshold: 2,
		Cooldown:  30 * time.Second,
	}, root.Breaker)
}

func TestDebounceThrottle(t *testing.T) {
	deb := parseOne(t, "f = a~>300ms")
	require.Equal(t, ast.KindDebounce, deb.Kind)
	assert.Equal(t, 300*time.Millisecond, deb.Interval)

	thr := parseOne(t, "f = a~|1s")
	require.Equal(t, ast.KindThrottle, thr.Kind)
	assert.Equal(t, time.Second, thr.Interval)
}

func TestDetach(t *testing.T) {
	root := parseOne(t, "f = a&")
	require.Equal(t, ast.KindDetach, root.Kind)
	assert.Equal(t, api.StepName("a"), root.Child().Step)
}

func TestCompensation(t *testing.T) {
	root := parseOne(t, "f = a^undoA && b")
	require.Equal(t, ast.KindSaga, root.Kind)
	assert.Equal(t, api.StepName("undoA"),
		root.Children[0].Compensation)
}

func TestBindingAndAnnotation(t *testing.T) {
	root := parseOne(t, `f = a:result "fetch the order"`)
	assert.Equal(t, "result", root.Binding)
	assert.Equal(t, "fetch the order", root.Annotation)
}

func TestDuplicateModifier(t *testing.T) {
	perr := parseError(t, "f = a@3@5")
	assert.Contains(t, perr.Expected, "a single retry")
}

func TestModifierStacking(t *testing.T) {
	// timeout nests inside retry so each attempt gets its own deadline
	root := parseOne(t, "f = a@3~5s")
	require.Equal(t, ast.KindRetry, root.Kind)
	require.Equal(t, ast.KindTimeout, root.Child().Kind)
	assert.Equal(t, api.StepName("a"), root.Child().Child().Step)
}

func TestModifierOrderCanonical(t *testing.T) {
	written := parseOne(t, "f = a~5s@3")
	flipped := parseOne(t, "f = a@3~5s")
	require.Equal(t, ast.KindRetry, written.Kind)
	assert.Equal(t, flipped.Kind, written.Kind)
	assert.Equal(t, flipped.Child().Kind, written.Child().Kind)
}

func TestModifierDepthLadder(t *testing.T) {
	root := parseOne(t, "f = a*@@{2,30s}@3~5s?[ok]&")
	var kinds []ast.Kind
	for n := root; n != nil; n = n.Child() {
		kinds = append(kinds, n.Kind)
		if n.Kind == ast.KindAtomic {
			break
		}
	}
	assert.Equal(t, []ast.Kind{
		ast.KindDetach,
		ast.KindLoop,
		ast.KindBreaker,
		ast.KindRetry,
		ast.KindTimeout,
		ast.KindGuard,
		ast.KindAtomic,
	}, kinds)
}

func TestCatch(t *testing.T) {
	root := parseOne(t, "f = a ! handle")
	require.NotNil(t, root.Catch)
	assert.Equal(t, ast.CatchOnError, root.Catch.Mode)
	assert.Equal(t, api.StepName("handle"), root.Catch.Handler.Step)
}

func TestFinallyAndSuppress(t *testing.T) {
	fin := parseOne(t, "f = a !! cleanup")
	assert.Equal(t, ast.CatchAlways, fin.Catch.Mode)

	sup := parseOne(t, "f = a !? swallow")
	assert.Equal(t, ast.CatchSuppress, sup.Catch.Mode)
}

func TestFallbackDesugarsToCatch(t *testing.T) {
	root := parseOne(t, "f = a || b")
	require.NotNil(t, root.Catch)
	assert.Equal(t, ast.CatchOnError, root.Catch.Mode)
	assert.Equal(t, api.StepName("b"), root.Catch.Handler.Step)
}

func TestChainedCatchWraps(t *testing.T) {
	root := parseOne(t, "f = a ! b ! c")
	require.Equal(t, ast.KindSequence, root.Kind)
	require.NotNil(t, root.Catch)
	assert.Equal(t, api.StepName("c"), root.Catch.Handler.Step)
	inner := root.Children[0]
	assert.Equal(t, api.StepName("b"), inner.Catch.Handler.Step)
}

func TestSubflowRef(t *testing.T) {
	root := parseOne(t, "f = @other")
	require.Equal(t, ast.KindRef, root.Kind)
	assert.True(t, root.Ref.Subflow)
	assert.Equal(t, "other", root.Ref.Name)
}

func TestLabelDefinitionAndRef(t *testing.T) {
	root := parseOne(t, "f = #start: a -> #start")
	require.Equal(t, ast.KindSequence, root.Kind)
	assert.Equal(t, "start", root.Children[0].Label)
	ref := root.Children[1]
	require.Equal(t, ast.KindRef, ref.Kind)
	assert.False(t, ref.Ref.Subflow)
	assert.Equal(t, "start", ref.Ref.Name)
}

func TestGroupForms(t *testing.T) {
	tagged := parseOne(t, "f = (lane): a")
	assert.Equal(t, "lane", tagged.Group)
	assert.Equal(t, api.StepName("a"), tagged.Step)

	wrapped := parseOne(t, "f = (lane: a -> b)")
	assert.Equal(t, "lane", wrapped.Group)
	assert.Equal(t, ast.KindSequence, wrapped.Kind)
}

func TestGroupDoesNotWrap(t *testing.T) {
	root := parseOne(t, "f = (a -> b) -> c")
	require.Equal(t, ast.KindSequence, root.Kind)
	require.Len(t, root.Children, 2)
	assert.Equal(t, ast.KindSequence, root.Children[0].Kind)
}

func TestBroadcast(t *testing.T) {
	root := parseOne(t, "f = a => [b | c]")
	require.Equal(t, ast.KindBroadcast, root.Kind)
	require.Len(t, root.Children, 2)
	assert.Equal(t, ast.KindBarrier, root.Children[1].Kind)
}

func TestEventStream(t *testing.T) {
	root := parseOne(t, "f = a >> b")
	require.Equal(t, ast.KindEventStream, root.Kind)
	require.Len(t, root.Children, 2)
}

func TestNewlinesInsideBrackets(t *testing.T) {
	root := parseOne(t, "f = [\n  a |\n  b\n]")
	require.Equal(t, ast.KindBarrier, root.Kind)
	assert.Len(t, root.Children, 2)
}

func TestMultipleFlows(t *testing.T) {
	tokens, err := lexer.Tokenize("f = a\ng = b")
	require.NoError(t, err)
	prog, err := parser.Parse(tokens)
	require.NoError(t, err)

	assert.Equal(t, []api.FlowName{"f", "g"}, prog.Names())
}

func TestDuplicateFlowName(t *testing.T) {
	perr := parseError(t, "f = a\nf = b")
	assert.Contains(t, perr.Expected, "unique flow name")
}

func TestDeterministicIDs(t *testing.T) {
	src := "f = a@3 -> [b | c] -> { ok: d, _: e }"
	first := parseOne(t, src)
	second := parseOne(t, src)

	var ids, again []api.NodeID
	ast.Walk(first, func(n *ast.Node) bool {
		ids = append(ids, n.ID)
		return true
	})
	ast.Walk(second, func(n *ast.Node) bool {
		again = append(again, n.ID)
		return true
	})

	assert.Equal(t, ids, again)
	assert.Equal(t, api.NodeID("f.0"), ids[0])
}

func TestMissingExpression(t *testing.T) {
	perr := parseError(t, "f =")
	assert.Contains(t, perr.Expected, "a step")
}

func TestTrailingGarbage(t *testing.T) {
	perr := parseError(t, "f = a b")
	assert.Contains(t, perr.Expected, "end of statement")
}
