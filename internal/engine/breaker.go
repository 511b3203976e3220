package engine

import (
	"context"
	"errors"

	"github.com/kode4food/flowscript/internal/policy"
	"github.com/kode4food/flowscript/internal/util"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
	"github.com/kode4food/flowscript/pkg/log"
)

var (
	ErrBadBreakerState = errors.New("invalid breaker state transition")

	breakerTransitions = util.StateTransitions[policy.BreakerState]{
		policy.BreakerClosed: util.SetOf(
			policy.BreakerClosed,
			policy.BreakerOpen,
		),
		policy.BreakerOpen: util.SetOf(
			policy.BreakerHalfOpen,
		),
		policy.BreakerHalfOpen: util.SetOf(
			policy.BreakerClosed,
			policy.BreakerOpen,
		),
	}
)

// evalBreaker gates the wrapped child behind the shared breaker entry
// for this node. Admission and settlement both go through the store's
// compare-and-swap so concurrent executions agree on state changes
func (x *execution) evalBreaker(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	key := policy.Key{Flow: flow.Name, Node: n.ID}

	trial, err := x.admit(ctx, key, n)
	if err != nil {
		return nil, err
	}

	out, cerr := x.eval(ctx, flow, n.Child(), input)
	if err := x.settle(ctx, key, n, trial, cerr == nil); err != nil {
		return nil, err
	}
	return out, cerr
}

// admit decides whether the call may proceed. It reports whether this
// call is the half-open trial
func (x *execution) admit(
	ctx context.Context, key policy.Key, n *ast.Node,
) (bool, error) {
	for {
		cur, err := x.engine.store.Get(ctx, key)
		if err != nil {
			return false, err
		}
		switch breakerState(cur) {
		case policy.BreakerClosed:
			return false, nil

		case policy.BreakerHalfOpen:
			// another execution holds the trial slot
			return false, &api.CircuitOpenError{
				Node:     n.ID,
				Cooldown: n.Breaker.Cooldown,
			}

		case policy.BreakerOpen:
			elapsed := x.engine.now().Sub(cur.OpenedAt)
			if elapsed < n.Breaker.Cooldown {
				return false, &api.CircuitOpenError{
					Node:     n.ID,
					Cooldown: n.Breaker.Cooldown,
				}
			}
			next := cur.Clone()
			next.Breaker = policy.BreakerHalfOpen
			ok, err := x.swapState(ctx, key, cur, next)
			if err != nil {
				return false, err
			}
			if ok {
				x.engine.metrics.ObserveBreaker(
					string(policy.BreakerHalfOpen))
				return true, nil
			}
			// lost the trial slot to a concurrent execution; re-read
		}
	}
}

// settle publishes the outcome of a call admitted by admit
func (x *execution) settle(
	ctx context.Context, key policy.Key, n *ast.Node, trial, success bool,
) error {
	for {
		cur, err := x.engine.store.Get(ctx, key)
		if err != nil {
			return err
		}

		next := cur.Clone()
		if success {
			next.Breaker = policy.BreakerClosed
			next.Failures = 0
		} else {
			next.Failures++
			if trial || next.Failures >= n.Breaker.Threshold {
				next.Breaker = policy.BreakerOpen
				next.OpenedAt = x.engine.now()
			} else {
				next.Breaker = policy.BreakerClosed
			}
		}

		if from := breakerState(cur); from != next.Breaker &&
			!breakerTransitions.CanTransition(from, next.Breaker) {
			// the breaker moved on since this call was admitted; its
			// outcome no longer applies to the current lifecycle
			return nil
		}

		ok, err := x.engine.store.CompareAndSwap(ctx, key, cur, next)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if from := breakerState(cur); from != next.Breaker {
			x.engine.metrics.ObserveBreaker(string(next.Breaker))
			x.engine.log.Info("Breaker state changed",
				log.NodeID(n.ID),
				log.Status(next.Breaker))
		}
		return nil
	}
}

// swapState publishes a derived snapshot, validating the breaker
// transition against the lifecycle table
func (x *execution) swapState(
	ctx context.Context, key policy.Key, cur, next *policy.State,
) (bool, error) {
	from, to := breakerState(cur), breakerState(next)
	if from != to && !breakerTransitions.CanTransition(from, to) {
		return false, ErrBadBreakerState
	}
	return x.engine.store.CompareAndSwap(ctx, key, cur, next)
}

func breakerState(st *policy.State) policy.BreakerState {
	if st == nil || st.Breaker == "" {
		return policy.BreakerClosed
	}
	return st.Breaker
}
