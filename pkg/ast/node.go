package ast

import (
	"time"

	"github.com/kode4food/flowscript/pkg/api"
)

// Kind identifies the variant of an AST node
type Kind string

const (
	KindAtomic       Kind = "atomic"
	KindSequence     Kind = "sequence"
	KindParallel     Kind = "parallel"
	KindBarrier      Kind = "barrier"
	KindBranch       Kind = "branch"
	KindRace         Kind = "race"
	KindSaga         Kind = "saga"
	KindLoop         Kind = "loop"
	KindGuard        Kind = "guard"
	KindRetry        Kind = "retry"
	KindTimeout      Kind = "timeout"
	KindBreaker      Kind = "breaker"
	KindDebounce     Kind = "debounce"
	KindThrottle     Kind = "throttle"
	KindDetach       Kind = "detach"
	KindEventStream  Kind = "stream"
	KindBroadcast    Kind = "broadcast"
	KindRef          Kind = "ref"
	KindStateMachine Kind = "machine"
)

type (
	// Node is a single vertex of a flow tree. Policy kinds (Loop, Guard,
	// Retry, Timeout, Breaker, Debounce, Throttle, Detach) wrap exactly
	// one child. Every node owns its children exclusively; only Ref
	// nodes reach outside their tree, and they do so by name, never by
	// pointer, so cyclic subflow graphs stay representable
	Node struct {
		Kind Kind
		ID   api.NodeID
		Pos  api.Position

		// Atomic
		Step api.StepName

		// Sequence, Parallel, Barrier, Race, Saga, Broadcast,
		// EventStream, and the single child of policy wrappers
		Children []*Node

		Cases       []BranchCase // Branch
		Transitions []Transition // StateMachine
		Ref         *RefSpec     // Ref

		Loop    *LoopSpec    // Loop
		Guard   api.StepName // Guard predicate name
		Retry   *RetrySpec   // Retry
		Timeout *TimeoutSpec // Timeout
		Breaker *BreakerSpec // Breaker

		// Debounce and Throttle quiet period / minimum interval
		Interval time.Duration

		// Catch is carried as a modifier rather than a wrapper so that
		// `A ! B` keeps A's identity in the trace
		Catch *CatchSpec

		// Compensation names the undo step pushed after this node
		// succeeds inside a Saga
		Compensation api.StepName

		// Side annotations; none of these alter execution semantics
		Group      string // swimlane/group tag for visualization
		Label      string // #name: definition on this node
		Binding    string // :name result binding
		Annotation string // "..." description text
	}

	// BranchCase pairs a discriminant label with its flow. The default
	// case uses the label "_"
	BranchCase struct {
		Label string
		Node  *Node
	}

	// Transition is one row of a state machine table
	Transition struct {
		From  string
		Event string
		To    string
	}

	// RefSpec names a subflow (@name) or label (#name) target. Index is
	// filled by the resolver for subflow refs; label refs stay
	// name-keyed and are looked up in the owning flow's label table
	RefSpec struct {
		Name    string
		Subflow bool
		Index   int
	}

	// LoopSpec captures quantifier bounds. Max < 0 means unbounded. A
	// loop stops at its first error and succeeds when at least Min runs
	// completed before it
	LoopSpec struct {
		Min int
		Max int
	}

	// RetrySpec configures re-invocation of the wrapped child
	RetrySpec struct {
		MaxAttempts int
		Strategy    string
		BaseDelay   time.Duration
		Multiplier  float64
	}

	// TimeoutSpec bounds the wrapped child, optionally falling back
	TimeoutSpec struct {
		Limit    time.Duration
		Fallback *Node
	}

	// BreakerSpec configures a circuit breaker
	BreakerSpec struct {
		Threshold int
		Cooldown  time.Duration
	}

	// CatchSpec attaches error handling to a node
	CatchSpec struct {
		Mode    CatchMode
		Handler *Node
	}

	// CatchMode distinguishes `!`, `!!` and `!?`
	CatchMode uint8
)

const (
	// CatchOnError runs the handler only when the node errors; the
	// handler's outcome becomes the node's outcome
	CatchOnError CatchMode = iota

	// CatchAlways runs the handler regardless of outcome, then re-raises
	// the node's original error if there was one
	CatchAlways

	// CatchSuppress runs the handler on error and swallows the error;
	// the handler's outcome becomes the node's outcome
	CatchSuppress
)

const (
	RetryFixed       = "fixed"
	RetryLinear      = "linear"
	RetryExponential = "exp"

	// DefaultCase is the label of a branch's fallback case
	DefaultCase = "_"
)

// Child returns the single wrapped child of a policy node
func (n *Node) Child() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// Walk visits n and every node it owns in depth-first pre-order. The
// visit stops when fn returns false. Ref nodes are leaves; Walk never
// crosses into other flows
func Walk(n *Node, fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !Walk(c, fn) {
			return false
		}
	}
	for _, c := range n.Cases {
		if !Walk(c.Node, fn) {
			return false
		}
	}
	if n.Timeout != nil {
		if !Walk(n.Timeout.Fallback, fn) {
			return false
		}
	}
	if n.Catch != nil {
		if !Walk(n.Catch.Handler, fn) {
			return false
		}
	}
	return true
}
