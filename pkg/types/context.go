package types

// Runtime carries the session's monotone clock and ambient environment
// facts. It is system-managed: no patch from model or tool output may
// touch it (spec.md §3, §4.3).
type Runtime struct {
	Round      int         `json:"round"`
	Workspace  string      `json:"workspace"`
	Datetime   string      `json:"datetime"`
	StartupAt  int64       `json:"startup_at"`
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`
	Budget     *BudgetInfo `json:"budget,omitempty"`
}

// Clone returns a deep copy.
func (r Runtime) Clone() Runtime {
	c := r
	if r.TokenUsage != nil {
		tu := *r.TokenUsage
		c.TokenUsage = &tu
	}
	if r.Budget != nil {
		b := *r.Budget
		c.Budget = &b
	}
	return c
}

// TokenUsage is a cumulative counter pair, runtime-diagnostic only.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// BudgetInfo is free-form runtime diagnostics about tool/model budgets in
// effect; never part of the stable wire contract beyond presence.
type BudgetInfo struct {
	ModelStepsUsed  int `json:"model_steps_used"`
	ModelStepsTotal int `json:"model_steps_total"`
}

// ActiveTaskMeta mirrors spec.md §3's active_task_meta record.
type ActiveTaskMeta struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Retries   int    `json:"retries"`
	Attempt   int    `json:"attempt"`
	StartedAt int64  `json:"started_at"`
	Execution string `json:"execution,omitempty"`
}

// LastTask mirrors spec.md §3's last_task record.
type LastTask struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	FinishedAt int64  `json:"finished_at"`
	Retries    int    `json:"retries"`
	Attempts   int    `json:"attempts"`
}

// TaskCheckpoint is the working-memory snapshot persisted across a retry
// boundary for one task id (spec.md §4.5, §4.6).
type TaskCheckpoint struct {
	TaskID        string        `json:"task_id"`
	TaskType      string        `json:"task_type"`
	SavedAt       int64         `json:"saved_at"`
	Retries       int           `json:"retries"`
	Attempts      int           `json:"attempts"`
	WorkingMemory []MemoryBlock `json:"working_memory"`
}

// Clone returns a deep copy.
func (c TaskCheckpoint) Clone() TaskCheckpoint {
	out := c
	out.WorkingMemory = CloneBlocks(c.WorkingMemory)
	return out
}

// CursorPhase and CursorNext are the closed vocabularies of a todo cursor.
type CursorPhase string
type CursorNext string

const (
	PhasePlanning  CursorPhase = "planning"
	PhaseDoing     CursorPhase = "doing"
	PhaseVerifying CursorPhase = "verifying"
	PhaseBlocked   CursorPhase = "blocked"

	NextNone           CursorNext = "none"
	NextTodoList       CursorNext = "todo_list"
	NextTodoAdd        CursorNext = "todo_add"
	NextTodoClearDone  CursorNext = "todo_clear_done"
	NextTodoComplete   CursorNext = "todo_complete"
	NextTodoReopen     CursorNext = "todo_reopen"
	NextTodoUpdate     CursorNext = "todo_update"
	NextTodoRemove     CursorNext = "todo_remove"
)

// TargetedNexts is the set of cursor "next" values requiring a non-nil
// positive TargetID (spec.md §4.3).
var TargetedNexts = map[CursorNext]bool{
	NextTodoComplete: true,
	NextTodoReopen:   true,
	NextTodoUpdate:   true,
	NextTodoRemove:   true,
}

// TodoCursor is the strict shape from spec.md §4.3.
type TodoCursor struct {
	V        int        `json:"v"`
	Phase    CursorPhase `json:"phase"`
	Next     CursorNext  `json:"next"`
	TargetID *int        `json:"targetId"`
	Note     string      `json:"note,omitempty"`
}

// TodoProgress is the progress snapshot carried on AgentContext.Todo and
// embedded in todo_events payloads (spec.md §3, §4.4).
type TodoProgress struct {
	Summary string      `json:"summary"`
	Total   int         `json:"total"`
	Step    int         `json:"step"`
	Cursor  *TodoCursor `json:"cursor,omitempty"`
}

// AgentContext is the session's structured state (spec.md §3).
type AgentContext struct {
	Version        int                     `json:"version"`
	Runtime        Runtime                 `json:"runtime"`
	Memory         map[Tier][]MemoryBlock  `json:"memory"`
	ActiveTask     *string                 `json:"active_task,omitempty"`
	ActiveTaskMeta *ActiveTaskMeta         `json:"active_task_meta,omitempty"`
	LastTask       *LastTask               `json:"last_task,omitempty"`
	TaskCheckpoint *TaskCheckpoint         `json:"task_checkpoint,omitempty"`
	Todo           *TodoProgress           `json:"todo,omitempty"`
	Project        map[string]any          `json:"project,omitempty"`
	Capabilities   map[string]any          `json:"capabilities,omitempty"`
	Extra          map[string]any          `json:"-"` // arbitrary pass-through top-level keys, deep-merged
}

// NewAgentContext builds a freshly initialized context: round 1, empty
// tiers, no active task.
func NewAgentContext(workspace, datetime string, startupAt int64) *AgentContext {
	return &AgentContext{
		Version: 1,
		Runtime: Runtime{
			Round:     1,
			Workspace: workspace,
			Datetime:  datetime,
			StartupAt: startupAt,
		},
		Memory: map[Tier][]MemoryBlock{
			TierCore:      {},
			TierWorking:   {},
			TierEphemeral: {},
		},
		Extra: map[string]any{},
	}
}

// CloneBlocks deep-copies a slice of memory blocks.
func CloneBlocks(blocks []MemoryBlock) []MemoryBlock {
	if blocks == nil {
		return nil
	}
	out := make([]MemoryBlock, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// Clone returns a deep copy of the whole context.
func (c *AgentContext) Clone() *AgentContext {
	if c == nil {
		return nil
	}
	out := &AgentContext{
		Version: c.Version,
		Runtime: c.Runtime.Clone(),
	}
	out.Memory = make(map[Tier][]MemoryBlock, len(c.Memory))
	for t, blocks := range c.Memory {
		out.Memory[t] = CloneBlocks(blocks)
	}
	if c.ActiveTask != nil {
		v := *c.ActiveTask
		out.ActiveTask = &v
	}
	if c.ActiveTaskMeta != nil {
		v := *c.ActiveTaskMeta
		out.ActiveTaskMeta = &v
	}
	if c.LastTask != nil {
		v := *c.LastTask
		out.LastTask = &v
	}
	if c.TaskCheckpoint != nil {
		v := c.TaskCheckpoint.Clone()
		out.TaskCheckpoint = &v
	}
	if c.Todo != nil {
		v := *c.Todo
		if c.Todo.Cursor != nil {
			cur := *c.Todo.Cursor
			if c.Todo.Cursor.TargetID != nil {
				t := *c.Todo.Cursor.TargetID
				cur.TargetID = &t
			}
			v.Cursor = &cur
		}
		out.Todo = &v
	}
	out.Project = deepCopyMap(c.Project)
	out.Capabilities = deepCopyMap(c.Capabilities)
	out.Extra = deepCopyMap(c.Extra)
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}

// ModelContextV2 is the pure whitelist projection sent on the wire
// (spec.md §4.3 toModelContextV2). Runtime diagnostics and projection-only
// fields are never included.
type ModelContextV2 struct {
	Version        int                    `json:"version"`
	Runtime        ModelRuntime           `json:"runtime"`
	Memory         map[Tier][]MemoryBlock `json:"memory"`
	Todo           *TodoProgress          `json:"todo,omitempty"`
	ActiveTask     *string                `json:"active_task,omitempty"`
	ActiveTaskMeta *ModelActiveTaskMeta   `json:"active_task_meta,omitempty"`
	Capabilities   map[string]any         `json:"capabilities,omitempty"`
}

// ModelRuntime is the diagnostics-free runtime slice exposed on the wire.
type ModelRuntime struct {
	Round     int    `json:"round"`
	Workspace string `json:"workspace"`
	Datetime  string `json:"datetime"`
	StartupAt int64  `json:"startup_at"`
}

// ModelActiveTaskMeta omits StartedAt per the whitelist in spec.md §4.3
// (`{id?,type?,status?,retries?,attempt?,execution?}` — retries is
// retained; StartedAt is the only field dropped since it duplicates
// runtime diagnostics already excluded).
type ModelActiveTaskMeta struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	Retries   int    `json:"retries,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Execution string `json:"execution,omitempty"`
}

// DropReason enumerates why a candidate block did not survive compaction
// or projection (spec.md §4.3 ProjectionDebug).
type DropReason string

const (
	DropThresholdDecay        DropReason = "threshold_decay"
	DropThresholdConfidence   DropReason = "threshold_confidence"
	DropExpiredByRound        DropReason = "expired_by_round"
	DropOverMaxItems          DropReason = "over_max_items"
	DropInvalidBlock          DropReason = "invalid_block"
	DropWorkingStatusTerminal DropReason = "working_status_terminal"
	DropTokenBudgetTrimmed    DropReason = "token_budget_trimmed"
)

// DroppedSample identifies one dropped block for debugging.
type DroppedSample struct {
	Tier Tier   `json:"tier"`
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ProjectionDebug reports compaction/projection counts by reason.
type ProjectionDebug struct {
	RawCounts       map[Tier]int            `json:"rawCounts"`
	InjectedCounts  map[Tier]int            `json:"injectedCounts"`
	DroppedByReason map[DropReason]int      `json:"droppedByReason"`
	DroppedSamples  map[DropReason][]DroppedSample `json:"droppedSamples"`
}

// NewProjectionDebug allocates the maps.
func NewProjectionDebug() *ProjectionDebug {
	return &ProjectionDebug{
		RawCounts:       map[Tier]int{},
		InjectedCounts:  map[Tier]int{},
		DroppedByReason: map[DropReason]int{},
		DroppedSamples:  map[DropReason][]DroppedSample{},
	}
}

// Record tallies one dropped block under reason, keeping at most 5 samples.
func (p *ProjectionDebug) Record(reason DropReason, tier Tier, b MemoryBlock) {
	p.DroppedByReason[reason]++
	if len(p.DroppedSamples[reason]) < 5 {
		p.DroppedSamples[reason] = append(p.DroppedSamples[reason], DroppedSample{Tier: tier, ID: b.ID, Type: b.Type})
	}
}
