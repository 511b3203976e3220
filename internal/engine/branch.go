package engine

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

const (
	labelOK  = "ok"
	labelErr = "err"

	// statusField is the JSON field consulted when a step result is a
	// document rather than a plain label
	statusField = "status"
)

// evalBranch selects exactly one case by the discriminant of the prior
// result. A failed prior result selects on "err" and hands the error to
// the chosen case as its input
func (x *execution) evalBranch(
	ctx context.Context, flow *ast.Flow, n *ast.Node, input any,
	inErr error,
) (any, error) {
	label := discriminant(input, inErr)
	caseIn := input
	if inErr != nil {
		caseIn = inErr
	}

	if c, ok := findCase(n.Cases, label); ok {
		return x.eval(ctx, flow, c, caseIn)
	}
	if c, ok := findCase(n.Cases, ast.DefaultCase); ok {
		return x.eval(ctx, flow, c, caseIn)
	}
	return nil, &api.UnmatchedBranchError{Label: label, Node: n.ID}
}

// evalMachine folds the incoming events through the transition table
// and yields the final state name. Events with no matching transition
// are silently ignored
func (x *execution) evalMachine(
	_ context.Context, n *ast.Node, input any,
) (any, error) {
	state := n.Transitions[0].From

	events, ok := input.([]any)
	if !ok {
		events = []any{input}
	}
	for _, ev := range events {
		name := discriminant(ev, nil)
		for _, t := range n.Transitions {
			if t.From == state && t.Event == name {
				state = t.To
				break
			}
		}
	}
	return state, nil
}

func findCase(cases []ast.BranchCase, label string) (*ast.Node, bool) {
	for _, c := range cases {
		if c.Label == label {
			return c.Node, true
		}
	}
	return nil, false
}

// discriminant maps a result to a branch label. Errors map to "err";
// plain strings are their own label; JSON documents contribute their
// "status" field; anything else is "ok"
func discriminant(value any, err error) string {
	if err != nil {
		return labelErr
	}
	switch v := value.(type) {
	case string:
		if res := gjson.Get(v, statusField); res.Exists() {
			return res.String()
		}
		return v
	case []byte:
		if res := gjson.GetBytes(v, statusField); res.Exists() {
			return res.String()
		}
	case map[string]any:
		if s, ok := v[statusField].(string); ok {
			return s
		}
	}
	return labelOK
}
