package engine

import (
	"context"
	"sync"

	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
	"github.com/kode4food/flowscript/pkg/log"
)

// execution is the per-run state of one flow invocation. The trace is
// the only structure written from multiple goroutines; it serializes
// its own appends
type execution struct {
	engine   *Engine
	program  *ast.Program
	registry api.Registry
	trace    *api.ExecutionTrace
	bindings *api.Bindings

	// forked counts goroutines whose results must land in the trace
	// before Execute returns: bare-fork children, race losers, and
	// abandoned timeout bodies. Detached children are not counted
	forked sync.WaitGroup
}

// runStep invokes the handler behind an atomic node. The worker pool
// bounds handler concurrency here rather than at fan-out sites, so
// nested barriers can never starve each other of slots
func (x *execution) runStep(
	ctx context.Context, n *ast.Node, input any,
) (any, error) {
	return x.invokeStep(ctx, n.ID, n.Step, input)
}

// invokeStep resolves and runs a named step, recording its trace entry
// and metrics. Compensation steps reuse this path under the node they
// compensate
func (x *execution) invokeStep(
	ctx context.Context, id api.NodeID, step api.StepName, input any,
) (any, error) {
	e := x.engine
	h, err := x.registry.ResolveStep(step)
	if err != nil {
		x.record(id, step, api.StepResult{
			Error:     err.Error(),
			Status:    api.StatusError,
			StartedAt: e.now(),
			EndedAt:   e.now(),
		})
		return nil, err
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	sctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	started := e.now()
	out, err := h(sctx, input)
	ended := e.now()

	res := api.StepResult{
		Status:    api.StatusSuccess,
		StartedAt: started,
		EndedAt:   ended,
	}
	switch {
	case err == nil:
		res.Value = out
	case ctx.Err() != nil:
		res.Status = api.StatusCancelled
		res.Error = err.Error()
	default:
		res.Status = api.StatusError
		res.Error = err.Error()
		e.log.Debug("Step failed",
			log.ExecID(x.trace.ExecID),
			log.NodeID(id),
			log.StepName(step),
			log.Error(err))
	}
	x.record(id, step, res)
	e.metrics.ObserveStep(string(res.Status), res.Duration())
	return out, err
}

func (x *execution) record(
	id api.NodeID, step api.StepName, res api.StepResult,
) {
	x.trace.Append(api.TraceEntry{NodeID: id, Step: step, Result: res})
}

// recordCancelled logs a trigger that a policy node absorbed without
// running its child, so the trace still accounts for it
func (x *execution) recordCancelled(n *ast.Node) {
	now := x.engine.now()
	x.record(n.ID, "", api.StepResult{
		Status:    api.StatusCancelled,
		StartedAt: now,
		EndedAt:   now,
	})
}
