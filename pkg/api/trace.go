package api

import "sync"

type (
	// TraceEntry records the outcome of one node evaluation
	TraceEntry struct {
		NodeID NodeID     `json:"node_id"`
		Step   StepName   `json:"step,omitempty"`
		Result StepResult `json:"result"`
	}

	// ExecutionTrace is an ordered, append-only log of node outcomes for
	// a single execution. Entries for detached or raced children may be
	// appended after the main flow settles; Wait blocks until all such
	// stragglers have reported
	ExecutionTrace struct {
		mu      sync.Mutex
		pending sync.WaitGroup
		ExecID  string
		entries []TraceEntry
	}
)

func NewExecutionTrace(execID string) *ExecutionTrace {
	return &ExecutionTrace{ExecID: execID}
}

// Append records a node outcome. Safe for concurrent use; arrival order
// is the trace order
func (t *ExecutionTrace) Append(e TraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// Entries returns a snapshot of the recorded entries
func (t *ExecutionTrace) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Steps returns the step names of recorded entries in trace order,
// skipping entries for non-atomic nodes
func (t *ExecutionTrace) Steps() []StepName {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []StepName
	for _, e := range t.entries {
		if e.Step != "" {
			out = append(out, e.Step)
		}
	}
	return out
}

// Result returns the last recorded result for a node
func (t *ExecutionTrace) Result(id NodeID) (StepResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].NodeID == id {
			return t.entries[i].Result, true
		}
	}
	return StepResult{}, false
}

// TrackAsync registers a child whose entry will arrive after the main
// flow settles
func (t *ExecutionTrace) TrackAsync() {
	t.pending.Add(1)
}

// AsyncDone marks one tracked child as reported
func (t *ExecutionTrace) AsyncDone() {
	t.pending.Done()
}

// Wait blocks until all tracked asynchronous children have reported
func (t *ExecutionTrace) Wait() {
	t.pending.Wait()
}
