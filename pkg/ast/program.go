package ast

import (
	"errors"
	"fmt"

	"github.com/kode4food/flowscript/pkg/api"
)

type (
	// Flow is a named top-level tree, addressable via @name. Labels is
	// populated by the resolver with this flow's #name: definitions
	Flow struct {
		Name   api.FlowName
		Root   *Node
		Labels map[string]*Node
	}

	// Program is a flat table of compiled flows. Subflow references hold
	// indexes into Flows, never node pointers. Once resolved, a Program
	// is immutable and safe to share across concurrent executions
	Program struct {
		Flows    []*Flow
		index    map[api.FlowName]int
		resolved bool
	}
)

var (
	ErrFlowNotFound  = errors.New("flow not found")
	ErrDuplicateFlow = errors.New("duplicate flow definition")
	ErrNotResolved   = errors.New("program not resolved")
)

func NewProgram() *Program {
	return &Program{index: map[api.FlowName]int{}}
}

// AddFlow appends a flow to the table
func (p *Program) AddFlow(f *Flow) error {
	if _, ok := p.index[f.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFlow, f.Name)
	}
	p.index[f.Name] = len(p.Flows)
	p.Flows = append(p.Flows, f)
	return nil
}

// Flow returns the named flow
func (p *Program) Flow(name api.FlowName) (*Flow, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.Flows[i], true
}

// FlowIndex returns the table index of the named flow
func (p *Program) FlowIndex(name api.FlowName) (int, bool) {
	i, ok := p.index[name]
	return i, ok
}

// FlowAt returns the flow at a resolved reference index
func (p *Program) FlowAt(i int) *Flow {
	return p.Flows[i]
}

// Names returns the flow names in definition order
func (p *Program) Names() []api.FlowName {
	names := make([]api.FlowName, len(p.Flows))
	for i, f := range p.Flows {
		names[i] = f.Name
	}
	return names
}

// MarkResolved is called by the resolver once references are checked
func (p *Program) MarkResolved() {
	p.resolved = true
}

// Resolved reports whether the program passed resolution
func (p *Program) Resolved() bool {
	return p.resolved
}
