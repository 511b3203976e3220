package engine

import (
	"context"
	"math"
	"time"

	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

// evalRetry re-invokes the wrapped child on error, sleeping the
// strategy's delay before each attempt after the first. Exhausting all
// attempts raises RetryExhaustedError wrapping the last error
func (x *execution) evalRetry(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	spec := n.Retry
	var last error
	for attempt := 1; attempt <= spec.MaxAttempts; attempt++ {
		if attempt > 1 {
			d := retryDelay(spec, attempt)
			if err := x.engine.sleep(ctx, d); err != nil {
				return nil, err
			}
			x.engine.metrics.ObserveRetry()
		}
		out, err := x.eval(ctx, flow, n.Child(), input)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		last = err
	}
	return nil, &api.RetryExhaustedError{
		Err:      last,
		Node:     n.ID,
		Attempts: spec.MaxAttempts,
	}
}

// retryDelay computes the pause before the given attempt (attempt >= 2)
func retryDelay(spec *ast.RetrySpec, attempt int) time.Duration {
	switch spec.Strategy {
	case ast.RetryLinear:
		return spec.BaseDelay * time.Duration(attempt-1)
	case ast.RetryExponential:
		scale := math.Pow(spec.Multiplier, float64(attempt-2))
		return time.Duration(float64(spec.BaseDelay) * scale)
	default:
		return spec.BaseDelay
	}
}
