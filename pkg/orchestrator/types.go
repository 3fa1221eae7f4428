package orchestrator

import (
	"time"

	"github.com/corebridge/agentcore/pkg/rbac"
)

// State is one node of the orchestration state machine (spec.md §4.6).
type State string

const (
	StateDiscover State = "DISCOVER"
	StatePlan     State = "PLAN"
	StateDispatch State = "DISPATCH"
	StateInject   State = "INJECT"
	StateDone     State = "DONE"
	StateFailed   State = "FAILED"
	StateTimeout  State = "TIMEOUT"
)

// ToolCall is one LLM-requested invocation, already namespaced and
// with arguments parsed (tolerantly) into a map.
type ToolCall struct {
	CallID       string
	PrefixedName string
	Arguments    map[string]any
}

// ExecutionRecord is the outcome of dispatching one ToolCall.
type ExecutionRecord struct {
	Capability string
	Tool       string
	Success    bool
	RowCount   int
	Error      string
	Reason     string
	Duration   time.Duration
	SampleRows []map[string]any
	Truncated  bool
}

// Turn is one user message + one assistant answer + the Execution
// Records produced in between, persisted atomically (spec.md §3).
type Turn struct {
	TurnNumber       int
	UserMessage      string
	AssistantMessage string
	Records          []ExecutionRecord
	StartedAt        time.Time
	CompletedAt      time.Time
	TotalDuration    time.Duration
}

// ExecutionMetadata summarizes one request's run of the loop.
type ExecutionMetadata struct {
	Rounds         int
	TotalToolCalls int
	FinalRound     bool
	Reason         string
}

// Result is what the orchestration loop returns to the caller
// (spec.md §4.6 "Outputs").
type Result struct {
	Success           bool
	AssistantMessage  string
	ExecutionMetadata ExecutionMetadata
	SessionID         string
	TurnID            int
	FinalAnswer       bool
	Records           []ExecutionRecord
}

// Request is the input to one orchestration run.
type Request struct {
	Message   string
	SessionID string
	RBAC      rbac.Context
}
