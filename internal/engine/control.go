package engine

import (
	"context"

	"github.com/kode4food/flowscript/pkg/ast"
	"github.com/kode4food/flowscript/pkg/log"
)

type settled struct {
	value any
	err   error
}

// evalSequence runs children strictly left to right. A child's error
// short-circuits the remaining siblings, except that an immediately
// following Branch receives the error as its discriminant so `err:`
// cases can fire
func (x *execution) evalSequence(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	cur := input
	var pending error
	for _, c := range n.Children {
		if pending != nil {
			if c.Kind != ast.KindBranch {
				return nil, pending
			}
			out, err := x.evalWith(ctx, flow, c, nil, pending)
			if err != nil {
				return nil, err
			}
			cur, pending = out, nil
			continue
		}
		out, err := x.eval(ctx, flow, c, cur)
		if err != nil {
			pending = err
			continue
		}
		cur = out
	}
	if pending != nil {
		return nil, pending
	}
	return cur, nil
}

// evalParallel is the bare fork: children are started and the parent
// continues immediately with its input. Child results land in the
// trace asynchronously; child failures are reported, never propagated
func (x *execution) evalParallel(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	for _, c := range n.Children {
		x.forked.Add(1)
		go func(c *ast.Node) {
			defer x.forked.Done()
			if _, err := x.eval(ctx, flow, c, input); err != nil {
				x.engine.log.Warn("Forked child failed",
					log.ExecID(x.trace.ExecID),
					log.NodeID(c.ID),
					log.Error(err))
			}
		}(c)
	}
	return input, nil
}

// evalBarrier starts all children concurrently and blocks until every
// one has settled. Siblings of a failing child run to completion; the
// first error in declared order becomes the barrier's error
func (x *execution) evalBarrier(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	values := make([]any, len(n.Children))
	errs := make([]error, len(n.Children))

	done := make(chan int, len(n.Children))
	for i, c := range n.Children {
		go func(i int, c *ast.Node) {
			values[i], errs[i] = x.eval(ctx, flow, c, input)
			done <- i
		}(i, c)
	}
	for range n.Children {
		<-done
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}

// evalRace starts all arms concurrently; the first to settle, success
// or error, is the result. Losers are cancelled and their eventual
// trace entries arrive asynchronously
func (x *execution) evalRace(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	rctx, cancel := context.WithCancel(ctx)

	results := make(chan settled, len(n.Children))
	for _, c := range n.Children {
		x.forked.Add(1)
		x.trace.TrackAsync()
		go func(c *ast.Node) {
			defer x.forked.Done()
			defer x.trace.AsyncDone()
			out, err := x.eval(rctx, flow, c, input)
			results <- settled{value: out, err: err}
		}(c)
	}

	first := <-results
	cancel()
	return first.value, first.err
}

// evalBroadcast delivers the settled source value to the sink. With a
// Barrier sink this is the concurrent fan-out form `A => [B | C]`
func (x *execution) evalBroadcast(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	out, err := x.eval(ctx, flow, n.Children[0], input)
	if err != nil {
		return nil, err
	}
	return x.eval(ctx, flow, n.Children[1], out)
}

// evalStream dispatches each element of the source result to the sink
// in order. A non-slice value is a single-element stream; a sink error
// stops the stream and propagates
func (x *execution) evalStream(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	src, err := x.eval(ctx, flow, n.Children[0], input)
	if err != nil {
		return nil, err
	}

	elems, ok := src.([]any)
	if !ok {
		elems = []any{src}
	}
	outs := make([]any, 0, len(elems))
	for _, el := range elems {
		out, err := x.eval(ctx, flow, n.Children[1], el)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

// evalDetach fires its child outside the parent's cancellation scope
// and continues immediately. The child's entry still lands in the
// trace when it settles; failures are logged, never propagated
func (x *execution) evalDetach(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	dctx := context.WithoutCancel(ctx)
	x.trace.TrackAsync()
	go func() {
		defer x.trace.AsyncDone()
		if _, err := x.eval(dctx, flow, n.Child(), input); err != nil {
			x.engine.log.Warn("Detached child failed",
				log.ExecID(x.trace.ExecID),
				log.NodeID(n.ID),
				log.Error(err))
		}
	}()
	return input, nil
}
