// Package resolver checks a parsed program before any execution can
// begin: every @name and #name reference must resolve, the subflow call
// graph and in-flow label graphs must be acyclic, and composite nodes
// must satisfy their static arity rules.
package resolver

import (
	"errors"
	"fmt"

	"github.com/kode4food/flowscript/internal/util"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

type resolver struct {
	program *ast.Program
}

// visit states for depth-first cycle detection
type visitState uint8

const (
	unvisited visitState = iota
	onStack
	done
)

var ErrDuplicateLabel = errors.New("duplicate label definition")

// Resolve validates the program in place and marks it executable.
// All static errors are fatal; a program that fails resolution must not
// be executed
func Resolve(p *ast.Program) error {
	r := &resolver{program: p}

	for _, f := range p.Flows {
		if err := r.collectLabels(f); err != nil {
			return err
		}
	}
	for _, f := range p.Flows {
		if err := r.resolveFlow(f); err != nil {
			return err
		}
	}
	if err := r.checkFlowCycles(); err != nil {
		return err
	}
	for _, f := range p.Flows {
		if err := r.checkLabelCycles(f); err != nil {
			return err
		}
	}

	p.MarkResolved()
	return nil
}

func (r *resolver) collectLabels(f *ast.Flow) error {
	f.Labels = map[string]*ast.Node{}
	var dup error
	ast.Walk(f.Root, func(n *ast.Node) bool {
		if n.Label == "" {
			return true
		}
		if _, ok := f.Labels[n.Label]; ok {
			dup = fmt.Errorf("%w: flow %s: #%s",
				ErrDuplicateLabel, f.Name, n.Label)
			return false
		}
		f.Labels[n.Label] = n
		return true
	})
	return dup
}

// resolveFlow checks references and static arity for one flow
func (r *resolver) resolveFlow(f *ast.Flow) error {
	var failed error
	ast.Walk(f.Root, func(n *ast.Node) bool {
		if err := r.checkNode(f, n); err != nil {
			failed = err
			return false
		}
		return true
	})
	return failed
}

func (r *resolver) checkNode(f *ast.Flow, n *ast.Node) error {
	switch n.Kind {
	case ast.KindRef:
		return r.resolveRef(f, n)
	case ast.KindRace:
		if len(n.Children) < 2 {
			return arityError(f, n, "race", 2)
		}
	case ast.KindBarrier:
		if len(n.Children) < 1 {
			return arityError(f, n, "barrier", 1)
		}
	case ast.KindBranch:
		if len(n.Cases) < 1 {
			return arityError(f, n, "branch", 1)
		}
	case ast.KindStateMachine:
		return checkTransitions(n)
	}
	return nil
}

// resolveRef binds subflow refs to their flow table index. Label refs
// stay name-keyed; existence is all that is checked here
func (r *resolver) resolveRef(f *ast.Flow, n *ast.Node) error {
	if n.Ref.Subflow {
		idx, ok := r.program.FlowIndex(api.FlowName(n.Ref.Name))
		if !ok {
			return &api.UnresolvedReferenceError{
				Flow: f.Name,
				Name: "@" + n.Ref.Name,
			}
		}
		n.Ref.Index = idx
		return nil
	}

	if _, ok := f.Labels[n.Ref.Name]; !ok {
		return &api.UnresolvedReferenceError{
			Flow: f.Name,
			Name: "#" + n.Ref.Name,
		}
	}
	return nil
}

// checkTransitions rejects two transitions leaving the same state on the
// same event
func checkTransitions(n *ast.Node) error {
	type key struct{ state, event string }
	seen := util.Set[key]{}
	for _, t := range n.Transitions {
		if !seen.AddNew(key{t.From, t.Event}) {
			return &api.AmbiguousTransitionError{
				State: t.From,
				Event: t.Event,
				Node:  n.ID,
			}
		}
	}
	return nil
}

// checkFlowCycles walks the subflow call graph depth-first with a
// recursion stack. A flow on its own call path is a fatal cycle; the
// engine has no tail-call elimination and must bound stack depth
func (r *resolver) checkFlowCycles() error {
	states := map[api.FlowName]visitState{}
	var stack []api.FlowName

	var visit func(name api.FlowName) error
	visit = func(name api.FlowName) error {
		switch states[name] {
		case done:
			return nil
		case onStack:
			return cycleError(stack, name)
		}
		states[name] = onStack
		stack = append(stack, name)

		f, _ := r.program.Flow(name)
		for _, callee := range subflowRefs(f) {
			if err := visit(callee); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		states[name] = done
		return nil
	}

	for _, f := range r.program.Flows {
		if err := visit(f.Name); err != nil {
			return err
		}
	}
	return nil
}

func subflowRefs(f *ast.Flow) []api.FlowName {
	var out []api.FlowName
	seen := util.Set[api.FlowName]{}
	ast.Walk(f.Root, func(n *ast.Node) bool {
		if n.Kind == ast.KindRef && n.Ref.Subflow {
			name := api.FlowName(n.Ref.Name)
			if seen.AddNew(name) {
				out = append(out, name)
			}
		}
		return true
	})
	return out
}

// checkLabelCycles detects #name references that expand back into their
// own definition
func (r *resolver) checkLabelCycles(f *ast.Flow) error {
	states := map[string]visitState{}

	var visit func(label string) error
	visit = func(label string) error {
		switch states[label] {
		case done:
			return nil
		case onStack:
			return &api.CyclicReferenceError{
				Cycle: []api.FlowName{
					f.Name,
					api.FlowName("#" + label),
				},
			}
		}
		states[label] = onStack

		var failed error
		ast.Walk(f.Labels[label], func(n *ast.Node) bool {
			if n.Kind == ast.KindRef && !n.Ref.Subflow {
				if err := visit(n.Ref.Name); err != nil {
					failed = err
					return false
				}
			}
			return true
		})
		if failed != nil {
			return failed
		}

		states[label] = done
		return nil
	}

	for label := range f.Labels {
		if err := visit(label); err != nil {
			return err
		}
	}
	return nil
}

func arityError(f *ast.Flow, n *ast.Node, kind string, minimum int) error {
	return &api.ParseError{
		Pos:      n.Pos,
		Expected: fmt.Sprintf("%s with at least %d children", kind, minimum),
		Found:    string(f.Name),
	}
}

func cycleError(stack []api.FlowName, repeat api.FlowName) error {
	start := 0
	for i, name := range stack {
		if name == repeat {
			start = i
			break
		}
	}
	cycle := append([]api.FlowName{}, stack[start:]...)
	cycle = append(cycle, repeat)
	return &api.CyclicReferenceError{Cycle: cycle}
}
