package engine

import (
	"context"

	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

// evalTimeout races the wrapped child against a deadline. On expiry the
// child is cancelled and the fallback, if any, takes over; the child's
// eventual trace entry still arrives asynchronously
func (x *execution) evalTimeout(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	tctx, cancel := context.WithCancel(ctx)

	done := make(chan settled, 1)
	go func() {
		out, err := x.eval(tctx, flow, n.Child(), input)
		done <- settled{value: out, err: err}
	}()

	expired := make(chan error, 1)
	go func() {
		expired <- x.engine.sleep(ctx, n.Timeout.Limit)
	}()

	select {
	case r := <-done:
		cancel()
		return r.value, r.err

	case serr := <-expired:
		cancel()
		if serr != nil {
			// the execution itself was cancelled, not the deadline
			<-done
			return nil, serr
		}

		// let the abandoned child settle into the trace off to the side
		x.forked.Add(1)
		x.trace.TrackAsync()
		go func() {
			defer x.forked.Done()
			defer x.trace.AsyncDone()
			<-done
		}()

		if n.Timeout.Fallback != nil {
			return x.eval(ctx, flow, n.Timeout.Fallback, input)
		}
		return nil, &api.TimeoutError{Node: n.ID, Limit: n.Timeout.Limit}
	}
}
