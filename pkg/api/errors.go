package api

import (
	"errors"
	"fmt"
	"time"
)

// Position locates a token or node within FlowScript source text
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Static errors abort compilation; no partial execution is possible

type (
	// LexError reports an unrecognized character or malformed token
	LexError struct {
		Message string
		Pos     Position
	}

	// ParseError reports a grammar violation
	ParseError struct {
		Expected string
		Found    string
		Pos      Position
	}

	// UnresolvedReferenceError reports an @name or #name with no
	// definition
	UnresolvedReferenceError struct {
		Name string
		Flow FlowName
	}

	// CyclicReferenceError reports a cycle in the subflow call graph
	CyclicReferenceError struct {
		Cycle []FlowName
	}

	// AmbiguousTransitionError reports two state machine transitions
	// sharing the same (state, event) pair
	AmbiguousTransitionError struct {
		State string
		Event string
		Node  NodeID
	}
)

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Message)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: expected %s, found %s",
		e.Pos, e.Expected, e.Found)
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("flow %s: unresolved reference %s", e.Flow, e.Name)
}

func (e *CyclicReferenceError) Error() string {
	s := "cyclic subflow reference"
	for i, f := range e.Cycle {
		if i == 0 {
			s += ": " + string(f)
		} else {
			s += " -> " + string(f)
		}
	}
	return s
}

func (e *AmbiguousTransitionError) Error() string {
	return fmt.Sprintf(
		"ambiguous transition from state %q on event %q", e.State, e.Event)
}

// Dynamic errors are scoped to one execution and propagate up the AST
// until caught

type (
	// TimeoutError reports a step that outlived its deadline
	TimeoutError struct {
		Node  NodeID
		Limit time.Duration
	}

	// RetryExhaustedError wraps the last underlying error after all
	// attempts failed
	RetryExhaustedError struct {
		Err      error
		Node     NodeID
		Attempts int
	}

	// CircuitOpenError reports a call rejected by an open breaker
	CircuitOpenError struct {
		Node     NodeID
		Cooldown time.Duration
	}

	// GuardFailedError reports a guard predicate that evaluated false
	GuardFailedError struct {
		Predicate StepName
		Node      NodeID
	}

	// UnmatchedBranchError reports a branch discriminant with no matching
	// case and no default
	UnmatchedBranchError struct {
		Label string
		Node  NodeID
	}

	// CompensationError reports a compensation step that itself failed
	// during saga unwind. Cause is the error that triggered the unwind
	CompensationError struct {
		Err   error
		Cause error
		Step  StepName
	}
)

var ErrExecutionCancelled = errors.New("execution cancelled")

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %s timed out after %s", e.Node, e.Limit)
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("node %s exhausted %d attempts: %s",
		e.Node, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("node %s: circuit open", e.Node)
}

func (e *GuardFailedError) Error() string {
	return fmt.Sprintf("node %s: guard %s failed", e.Node, e.Predicate)
}

func (e *UnmatchedBranchError) Error() string {
	return fmt.Sprintf("node %s: no branch matches %q", e.Node, e.Label)
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation %s failed: %s", e.Step, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}
