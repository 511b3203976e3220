package engine

import (
	"context"

	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

// compensation is one deferred undo action, pushed after the step it
// compensates has succeeded
type compensation struct {
	value any
	node  api.NodeID
	step  api.StepName
}

// evalSaga runs children in sequence, accumulating compensations for
// the ones that succeed. On a later failure the stack unwinds in
// reverse; a compensation that itself fails aborts the unwind with
// CompensationError
func (x *execution) evalSaga(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	var stack []compensation
	cur := input
	for _, c := range n.Children {
		out, err := x.eval(ctx, flow, c, cur)
		if err != nil {
			return nil, x.unwind(ctx, stack, err)
		}
		if comp := compensationOf(c); comp != "" {
			stack = append(stack, compensation{
				value: out,
				node:  c.ID,
				step:  comp,
			})
		}
		cur = out
	}
	return cur, nil
}

// unwind invokes the accumulated compensations LIFO. Compensation
// failures are terminal; they are never retried
func (x *execution) unwind(
	ctx context.Context, stack []compensation, cause error,
) error {
	for i := len(stack) - 1; i >= 0; i-- {
		c := stack[i]
		_, err := x.invokeStep(ctx, c.node, c.step, c.value)
		if err != nil {
			return &api.CompensationError{
				Err:   err,
				Cause: cause,
				Step:  c.step,
			}
		}
	}
	return cause
}

// compensationOf digs the ^comp modifier out of a saga child, looking
// through the policy wrappers postfix parsing may have stacked on top
func compensationOf(n *ast.Node) api.StepName {
	for n != nil {
		if n.Compensation != "" {
			return n.Compensation
		}
		switch n.Kind {
		case ast.KindLoop, ast.KindGuard, ast.KindRetry, ast.KindTimeout,
			ast.KindBreaker, ast.KindDebounce, ast.KindThrottle:
			n = n.Child()
		default:
			return ""
		}
	}
	return ""
}
