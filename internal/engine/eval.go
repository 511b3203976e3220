package engine

import (
	"context"
	"fmt"

	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
	"github.com/kode4food/flowscript/pkg/log"
)

// eval evaluates one node, applying its catch modifier and result
// binding around the kind-specific rule
func (x *execution) eval(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	return x.evalWith(ctx, flow, n, input, nil)
}

// evalWith additionally carries a predecessor's error, which a Branch
// node consumes as its discriminant. Catch and binding still apply
func (x *execution) evalWith(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
	inErr error,
) (any, error) {
	if n == nil {
		return input, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := x.evalKind(ctx, flow, n, input, inErr)
	out, err = x.applyCatch(ctx, flow, n, out, err)
	if err == nil && n.Binding != "" {
		x.bindings.Set(n.Binding, out)
	}
	return out, err
}

func (x *execution) evalKind(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
	inErr error,
) (any, error) {
	switch n.Kind {
	case ast.KindAtomic:
		return x.runStep(ctx, n, input)
	case ast.KindSequence:
		return x.evalSequence(ctx, flow, n, input)
	case ast.KindParallel:
		return x.evalParallel(ctx, flow, n, input)
	case ast.KindBarrier:
		return x.evalBarrier(ctx, flow, n, input)
	case ast.KindBranch:
		return x.evalBranch(ctx, flow, n, input, inErr)
	case ast.KindRace:
		return x.evalRace(ctx, flow, n, input)
	case ast.KindSaga:
		return x.evalSaga(ctx, flow, n, input)
	case ast.KindLoop:
		return x.evalLoop(ctx, flow, n, input)
	case ast.KindGuard:
		return x.evalGuard(ctx, flow, n, input)
	case ast.KindRetry:
		return x.evalRetry(ctx, flow, n, input)
	case ast.KindTimeout:
		return x.evalTimeout(ctx, flow, n, input)
	case ast.KindBreaker:
		return x.evalBreaker(ctx, flow, n, input)
	case ast.KindDebounce:
		return x.evalDebounce(ctx, flow, n, input)
	case ast.KindThrottle:
		return x.evalThrottle(ctx, flow, n, input)
	case ast.KindDetach:
		return x.evalDetach(ctx, flow, n, input)
	case ast.KindEventStream:
		return x.evalStream(ctx, flow, n, input)
	case ast.KindBroadcast:
		return x.evalBroadcast(ctx, flow, n, input)
	case ast.KindRef:
		return x.evalRef(ctx, flow, n, input)
	case ast.KindStateMachine:
		return x.evalMachine(ctx, n, input)
	}
	return nil, fmt.Errorf("unknown node kind %q at %s", n.Kind, n.ID)
}

// applyCatch implements the `!`, `!!`, and `!?` handler modes
func (x *execution) applyCatch(
	ctx context.Context, flow *ast.Flow, n *ast.Node, out any, err error,
) (any, error) {
	c := n.Catch
	if c == nil {
		return out, err
	}

	switch c.Mode {
	case ast.CatchOnError:
		if err == nil {
			return out, nil
		}
		return x.eval(ctx, flow, c.Handler, err)

	case ast.CatchAlways:
		hin := out
		if err != nil {
			hin = err
		}
		_, herr := x.eval(ctx, flow, c.Handler, hin)
		if err != nil {
			// the original error wins over a failing finalizer
			return nil, err
		}
		if herr != nil {
			return nil, herr
		}
		return out, nil

	case ast.CatchSuppress:
		if err == nil {
			return out, nil
		}
		hout, herr := x.eval(ctx, flow, c.Handler, err)
		if herr != nil {
			x.engine.log.Debug("Suppressed handler failed",
				log.ExecID(x.trace.ExecID),
				log.NodeID(n.ID),
				log.Error(herr))
			return nil, nil
		}
		return hout, nil
	}
	return out, err
}

// evalGuard evaluates the predicate before its child. A false result
// raises GuardFailedError, which propagates like any other step error
func (x *execution) evalGuard(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	pred, err := x.registry.ResolvePredicate(n.Guard)
	if err != nil {
		return nil, err
	}
	ok, err := pred(ctx, input)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &api.GuardFailedError{Predicate: n.Guard, Node: n.ID}
	}
	return x.eval(ctx, flow, n.Child(), input)
}

// evalLoop repeats its child until the first error or the upper bound.
// The loop succeeds when at least Min runs completed before the error
func (x *execution) evalLoop(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	spec := n.Loop
	var last any = input
	completed := 0
	for spec.Max < 0 || completed < spec.Max {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := x.eval(ctx, flow, n.Child(), input)
		if err != nil {
			if completed >= spec.Min {
				return last, nil
			}
			return nil, err
		}
		last = out
		completed++
	}
	return last, nil
}

// evalRef invokes a subflow by table index or re-enters a labeled node
// of the current flow
func (x *execution) evalRef(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	if n.Ref.Subflow {
		sub := x.program.FlowAt(n.Ref.Index)
		return x.eval(ctx, sub, sub.Root, input)
	}
	return x.eval(ctx, flow, flow.Labels[n.Ref.Name], input)
}
