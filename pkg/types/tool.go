package types

import (
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// ToolDisplayEnvelope is the versioned, template-keyed record tools emit
// for UI rendering of calls and results (spec.md §6).
type ToolDisplayEnvelope struct {
	Version     int            `json:"version"`
	ToolName    string         `json:"toolName"`
	Phase       string         `json:"phase"` // "call" | "result"
	TemplateKey string         `json:"templateKey"`
	Data        map[string]any `json:"data"`
}

// NewCallEnvelope builds a phase:"call" envelope with templateKey
// "builtin.<tool>.call".
func NewCallEnvelope(toolName string, data map[string]any) ToolDisplayEnvelope {
	return ToolDisplayEnvelope{Version: 1, ToolName: toolName, Phase: "call", TemplateKey: "builtin." + toolName + ".call", Data: data}
}

// NewResultEnvelope builds a phase:"result" envelope with templateKey
// "builtin.<tool>.result". subKey, if non-empty, is inserted between tool
// and phase (e.g. "builtin.bash.session_query.result").
func NewResultEnvelope(toolName, subKey string, data map[string]any) ToolDisplayEnvelope {
	key := "builtin." + toolName
	if subKey != "" {
		key += "." + subKey
	}
	key += ".result"
	return ToolDisplayEnvelope{Version: 1, ToolName: toolName, Phase: "result", TemplateKey: key, Data: data}
}

// PermissionSpec is the user-configured allow/deny regex set for one tool.
type PermissionSpec struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// Permissions maps tool name to its PermissionSpec.
type Permissions struct {
	Permissions map[string]PermissionSpec `json:"permissions"`
}

// ToolSettledEvent is delivered to ToolExecutionContext.OnToolExecutionSettled
// after a tool call completes, whether it succeeded or failed in-band
// (spec.md §4.2 step 6).
type ToolSettledEvent struct {
	ToolName string
	Input    map[string]any
	OK       bool
	Result   map[string]any
	Err      error
}

// TodoStoreAPI is the subset of *todostore.Store the todo_* builtin tools
// need. Declared here (rather than imported) so pkg/types does not depend
// on internal/todostore; *todostore.Store satisfies this structurally.
type TodoStoreAPI interface {
	List(status *TodoStatus, limit int) ([]TodoItem, error)
	Add(title, note string) (TodoItem, TodoProgress, error)
	Update(id int, title, note *string) (TodoItem, TodoProgress, error)
	SetDone(id int, done bool) (TodoItem, TodoProgress, error)
	Remove(id int) (TodoItem, TodoProgress, error)
	ClearDone(toolName string) ([]TodoItem, TodoProgress, error)
	Progress() (TodoProgress, error)
}

// MemoryCoordinator is the narrow seam the memory_* builtin tools use to
// read and patch the live AgentContext's memory tiers without pkg/types
// depending on internal/memctx or internal/session (spec.md §4.3, §4.5
// "the only mutator of AgentContext.Memory outside ingestion is this
// coordinator"). Patch/result shapes are plain records, matching the
// generic tool-record convention used everywhere else.
type MemoryCoordinator interface {
	ListBlocks(tier string) ([]MemoryBlock, error)
	ApplyPatch(patch map[string]any) (map[string]any, error)
}

// ToolExecutionContext is the ambient per-tool-call context (spec.md §6).
type ToolExecutionContext struct {
	Workspace               string
	Permissions             *Permissions
	ToolBudget              *ToolBudget
	ToolOutputMessageSource string // "sdk_hooks" | "registry_wrapper"

	OnOutputMessage        func(toolName string, envelope ToolDisplayEnvelope)
	OnToolExecutionSettled func(ToolSettledEvent)

	TodoStore         TodoStoreAPI
	MemoryCoordinator MemoryCoordinator

	PersistentMemoryPresent bool // whether a persistentMemoryCoordinator was wired (seam, no behavior here)
	ScheduleGatewayPresent  bool // whether a scheduleGateway was wired (seam, no behavior here)
}

// ToolBudget is a per-task call budget keyed by tool name, consumed under
// atomic compare-and-decrement (spec.md §5 "Shared-resource policy").
// Keys may be exact tool names or doublestar wildcard patterns (e.g.
// "todo_*"); an exact match always takes precedence over a matching
// wildcard (SPEC_FULL.md §C.2).
type ToolBudget struct {
	mu     sync.Mutex
	limits map[string]int
	used   map[string]int
}

// NewToolBudget builds a budget from a tool-name/pattern -> limit map.
func NewToolBudget(limits map[string]int) *ToolBudget {
	out := make(map[string]int, len(limits))
	for k, v := range limits {
		out[k] = v
	}
	return &ToolBudget{limits: out, used: map[string]int{}}
}

// limitFor resolves the limit for toolName: an exact key wins over any
// wildcard pattern; when several wildcard patterns match, the smallest of
// their limits applies.
func (b *ToolBudget) limitFor(toolName string) (int, bool) {
	if v, ok := b.limits[toolName]; ok {
		return v, true
	}
	best := -1
	found := false
	for pattern, limit := range b.limits {
		if pattern == toolName {
			continue
		}
		if ok, _ := doublestar.Match(pattern, toolName); ok {
			if !found || limit < best {
				best, found = limit, true
			}
		}
	}
	return best, found
}

// ToolBudgetExceeded is thrown (returned as a Go error), not in-band, per
// spec.md §7.
type ToolBudgetExceeded struct {
	ToolName  string
	Used      int
	Remaining int
	Limit     int
}

func (e *ToolBudgetExceeded) Error() string {
	return "tool budget exceeded: " + e.ToolName
}

// Consume attempts to use one unit of toolName's budget. If no limit is
// configured for toolName, the call always succeeds (unbudgeted).
func (b *ToolBudget) Consume(toolName string) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	limit, ok := b.limitFor(toolName)
	if !ok {
		return nil
	}
	used := b.used[toolName]
	if used >= limit {
		return &ToolBudgetExceeded{ToolName: toolName, Used: used, Remaining: 0, Limit: limit}
	}
	b.used[toolName] = used + 1
	return nil
}
