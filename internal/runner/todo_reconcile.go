package runner

import "github.com/agentcore/agentcore/pkg/types"

// GetTodoProgressFromToolOutput reads a {todo:{summary,total,step}}
// sub-record off the result of a todo-mutating tool call, mirroring
// spec.md §4.6 "__agentRunnerInternals.getTodoProgressContextFromToolOutput".
// Returns ok=false when the result carries no such sub-record.
func GetTodoProgressFromToolOutput(toolResult map[string]any) (types.TodoProgress, bool) {
	raw, ok := toolResult["todo"]
	if !ok {
		return types.TodoProgress{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return types.TodoProgress{}, false
	}
	progress := types.TodoProgress{}
	if s, ok := m["summary"].(string); ok {
		progress.Summary = s
	}
	if v, ok := m["total"].(int); ok {
		progress.Total = v
	} else if v, ok := m["total"].(float64); ok {
		progress.Total = int(v)
	}
	if v, ok := m["step"].(int); ok {
		progress.Step = v
	} else if v, ok := m["step"].(float64); ok {
		progress.Step = int(v)
	}
	return progress, true
}

// ReconcileKind is the closed vocabulary ReconcileTodoCursor returns.
type ReconcileKind string

const (
	ReconcileKeep  ReconcileKind = "keep"
	ReconcileClear ReconcileKind = "clear"
)

// ClearReason names why a cursor was cleared.
const (
	ReasonTargetMissing    = "target_missing"
	ReasonConsumedComplete = "consumed_complete"
)

// ReconcileResult is ReconcileTodoCursor's verdict.
type ReconcileResult struct {
	Kind   ReconcileKind
	Reason string // set only when Kind == ReconcileClear
}

// ReconcileTodoCursor implements spec.md §4.6
// "__agentRunnerInternals.reconcileTodoCursor(cursor, items)": given the
// current cursor and the item list, decide whether the cursor still
// points at live, actionable state.
func ReconcileTodoCursor(cursor *types.TodoCursor, items []types.TodoItem) ReconcileResult {
	if cursor == nil || cursor.TargetID == nil {
		return ReconcileResult{Kind: ReconcileKeep}
	}
	var target *types.TodoItem
	for i := range items {
		if items[i].ID == *cursor.TargetID {
			target = &items[i]
			break
		}
	}
	if target == nil {
		return ReconcileResult{Kind: ReconcileClear, Reason: ReasonTargetMissing}
	}
	if cursor.Next == types.NextTodoComplete && target.Status == types.TodoDone {
		return ReconcileResult{Kind: ReconcileClear, Reason: ReasonConsumedComplete}
	}
	return ReconcileResult{Kind: ReconcileKeep}
}
