package event

import "github.com/agentcore/agentcore/pkg/types"

// ToolCallData is published when the uniform tool wrapper is about to
// invoke a tool's Execute (spec.md §4.2 step 3).
type ToolCallData struct {
	ToolName string                    `json:"toolName"`
	CallID   string                    `json:"callId,omitempty"`
	Input    map[string]any            `json:"input"`
	Envelope types.ToolDisplayEnvelope `json:"envelope"`
}

// ToolResultData is published after Execute returns (spec.md §4.2 step 5).
type ToolResultData struct {
	ToolName string                    `json:"toolName"`
	CallID   string                    `json:"callId,omitempty"`
	OK       bool                      `json:"ok"`
	Error    string                    `json:"error,omitempty"`
	Envelope types.ToolDisplayEnvelope `json:"envelope"`
}

// TodoEventData mirrors one append-only todostore mutation (spec.md §4.4).
type TodoEventData struct {
	Event    types.TodoEvent    `json:"event"`
	Progress types.TodoProgress `json:"progress"`
}

// PolicyDeniedData is published whenever a Policy & Guard predicate
// rejects a tool's target (spec.md §4.1, §7).
type PolicyDeniedData struct {
	Tool   string `json:"tool"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// BudgetExceededData is published when a per-task ToolBudget rejects a
// call before Execute runs (spec.md §4.2 step 2, §7).
type BudgetExceededData struct {
	ToolName  string `json:"toolName"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
}
