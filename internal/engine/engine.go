// Package engine interprets resolved FlowScript programs. Each node
// kind has a dedicated evaluation rule; real concurrency is fanned out
// onto a bounded worker pool for Parallel, Barrier, Race, and Broadcast
// children while each execution's trace stays single-writer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kode4food/flowscript/internal/config"
	"github.com/kode4food/flowscript/internal/metrics"
	"github.com/kode4food/flowscript/internal/policy"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
	"github.com/kode4food/flowscript/pkg/log"
)

type (
	// Options configures an Engine. Zero values fall back to defaults;
	// Now and Sleep exist so tests can drive policy timing without
	// waiting on real clocks
	Options struct {
		Store       policy.Store
		Metrics     *metrics.Metrics
		Logger      *slog.Logger
		Now         func() time.Time
		Sleep       func(context.Context, time.Duration) error
		Workers     int
		StepTimeout time.Duration
	}

	// Engine executes resolved programs against host-supplied handlers.
	// An Engine is stateless apart from its policy store and may run any
	// number of executions concurrently
	Engine struct {
		sem         *semaphore.Weighted
		store       policy.Store
		metrics     *metrics.Metrics
		log         *slog.Logger
		now         func() time.Time
		sleep       func(context.Context, time.Duration) error
		stepTimeout time.Duration
	}
)

var (
	ErrNotResolved = errors.New("program must be resolved before execution")
	ErrNoEntryFlow = errors.New("entry flow not defined")
	ErrNilRegistry = errors.New("handler registry required")
)

func New(opts Options) *Engine {
	workers := opts.Workers
	if workers < 1 {
		workers = config.DefaultWorkers
	}
	store := opts.Store
	if store == nil {
		store = policy.NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepFor
	}
	stepTimeout := opts.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = config.DefaultStepTimeout
	}

	return &Engine{
		sem:         semaphore.NewWeighted(int64(workers)),
		store:       store,
		metrics:     opts.Metrics,
		log:         logger,
		now:         now,
		sleep:       sleep,
		stepTimeout: stepTimeout,
	}
}

// Execute runs one flow of a resolved program to completion. The trace
// is returned even when execution fails, so callers can diagnose the
// partial run. Detached children may still append entries after Execute
// returns; trace.Wait blocks until they have
func (e *Engine) Execute(
	ctx context.Context, prog *ast.Program, entry api.FlowName,
	registry api.Registry,
) (*api.ExecutionTrace, error) {
	if prog == nil || !prog.Resolved() {
		return nil, ErrNotResolved
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	flow, ok := prog.Flow(entry)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryFlow, entry)
	}

	x := &execution{
		engine:   e,
		program:  prog,
		registry: registry,
		trace:    api.NewExecutionTrace(uuid.NewString()),
		bindings: api.NewBindings(),
	}
	ctx = api.WithBindings(ctx, x.bindings)

	_, err := x.eval(ctx, flow, flow.Root, nil)
	x.forked.Wait()

	status := api.StatusSuccess
	if err != nil {
		status = api.StatusError
		if errors.Is(err, context.Canceled) {
			status = api.StatusCancelled
		}
		e.log.Error("Flow execution failed",
			log.FlowID(entry),
			log.ExecID(x.trace.ExecID),
			log.Error(err))
	}
	e.metrics.ObserveExecution(string(status))
	return x.trace, err
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
