package engine

import (
	"context"

	"github.com/kode4food/flowscript/internal/policy"
	"github.com/kode4food/flowscript/pkg/ast"
)

// evalDebounce arms the shared quiet-period timer for this node. Only
// the newest trigger survives the quiet period; superseded triggers
// resolve as cancelled trace entries with a nil result
func (x *execution) evalDebounce(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	key := policy.Key{Flow: flow.Name, Node: n.ID}

	var seq uint64
	for {
		cur, err := x.engine.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		next.Seq++
		next.LastFireAt = x.engine.now()
		ok, err := x.engine.store.CompareAndSwap(ctx, key, cur, next)
		if err != nil {
			return nil, err
		}
		if ok {
			seq = next.Seq
			break
		}
	}

	if err := x.engine.sleep(ctx, n.Interval); err != nil {
		return nil, err
	}

	cur, err := x.engine.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if cur != nil && cur.Seq != seq {
		// a newer trigger arrived during the quiet period
		x.recordCancelled(n)
		return nil, nil
	}
	return x.eval(ctx, flow, n.Child(), input)
}

// evalThrottle admits at most one trigger per interval. Dropped
// triggers resolve silently with a cancelled trace entry
func (x *execution) evalThrottle(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
) (any, error) {
	key := policy.Key{Flow: flow.Name, Node: n.ID}

	cur, err := x.engine.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	now := x.engine.now()
	if cur != nil && now.Sub(cur.LastFireAt) < n.Interval {
		x.recordCancelled(n)
		return nil, nil
	}

	next := cur.Clone()
	next.LastFireAt = now
	next.Seq++
	ok, err := x.engine.store.CompareAndSwap(ctx, key, cur, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		// a concurrent trigger claimed this interval first
		x.recordCancelled(n)
		return nil, nil
	}
	return x.eval(ctx, flow, n.Child(), input)
}
