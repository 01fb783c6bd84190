// Package session implements the Agent Session (spec.md §4.5): the
// message list plus owned AgentContext, task begin/finish with retry
// checkpointing, and turn preparation (memory projection + injected
// context message). Grounded on the teacher's
// `internal/session/processor.go` (per-session state ownership,
// serialized access) and `internal/session/loop.go` (turn/message
// bookkeeping around a model call), generalized from the teacher's
// concrete eino-schema message list to the spec's own MessageList/
// AgentContext types.
package session

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentcore/agentcore/internal/memctx"
	"github.com/agentcore/agentcore/pkg/types"
)

// Options configures a new Session.
type Options struct {
	Clock Clock
	// InjectedLite, when true, strips memory tiers from the injected
	// context payload (runtime/todo/active-task only), trading recall
	// for a smaller system message on every turn. Not part of spec.md's
	// normative projection; a scoping decision recorded in DESIGN.md.
	InjectedLite bool
}

// Session owns one AgentContext and MessageList from construction to
// teardown (spec.md §3 "Ownership"). Not reentrant: concurrent
// runTask*-style calls on the same Session must be serialized by the
// caller (spec.md §5).
type Session struct {
	workspace    string
	injectedLite bool
	clock        Clock
	systemPrompt string

	messages *types.MessageList
	context  *types.AgentContext
}

// New constructs a Session seeded with one system message holding the
// fixed system prompt, and a freshly initialized AgentContext at round 1
// (spec.md §4.5 "State").
func New(workspace, systemPrompt string, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	now := clock.Now()
	return &Session{
		workspace:    workspace,
		injectedLite: opts.InjectedLite,
		clock:        clock,
		systemPrompt: systemPrompt,
		messages:     types.NewMessageList(systemPrompt),
		context:      types.NewAgentContext(workspace, formatDatetime(now), now.UnixMilli()),
	}
}

func formatDatetime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NewULID mints a monotone-enough id for messages/events/memory blocks,
// grounded on the teacher's own `oklog/ulid` usage throughout
// `internal/session`.
func NewULID() string {
	return ulid.Make().String()
}

// Workspace returns the session's absolute workspace path.
func (s *Session) Workspace() string { return s.workspace }

// Context returns the live AgentContext. Callers must not mutate it
// in place; use MergeExtractedContext or the task begin/finish
// operations, which are the session's only sanctioned mutators.
func (s *Session) Context() *types.AgentContext { return s.context }

// Messages returns the live MessageList (same mutation caveat as
// Context).
func (s *Session) Messages() *types.MessageList { return s.messages }

// MergeExtractedContext sanitizes an incoming patch (values originate
// from tool outputs and model-emitted context_patch objects), merges it
// under the memory policy, and raw-compacts the result before writing it
// back (spec.md §4.5 "sanitize -> merge -> raw-compact").
func (s *Session) MergeExtractedContext(patch map[string]any, source memctx.Source) {
	sanitized := memctx.SanitizeIncomingContextPatch(patch, s.context, memctx.SanitizeOptions{Source: source})
	merged := memctx.MergeContextWithMemoryPolicy(s.context, sanitized)
	s.context = memctx.CompactRawContextForStorage(merged)
}

// BeginTaskOptions is the input to BeginTaskContext (spec.md §4.5).
type BeginTaskOptions struct {
	ID        string
	Type      string
	Input     string
	Retries   int
	StartedAt int64
}

// BeginTaskContext starts a task's bookkeeping: if retries>0 and the
// stored task_checkpoint belongs to the same task id, the checkpoint's
// working memory is restored as the new working tier; otherwise working
// and ephemeral are cleared and any stale checkpoint (belonging to a
// different task id, or left over with retries==0) is discarded (spec.md
// §4.5, §8 property 8, §8 scenario S6).
func (s *Session) BeginTaskContext(opts BeginTaskOptions) {
	ctx := s.context
	if opts.Retries > 0 && ctx.TaskCheckpoint != nil && ctx.TaskCheckpoint.TaskID == opts.ID {
		ctx.Memory[types.TierWorking] = types.CloneBlocks(ctx.TaskCheckpoint.WorkingMemory)
	} else {
		ctx.Memory[types.TierWorking] = []types.MemoryBlock{}
		ctx.Memory[types.TierEphemeral] = []types.MemoryBlock{}
		ctx.TaskCheckpoint = nil
	}
	input := opts.Input
	ctx.ActiveTask = &input
	ctx.ActiveTaskMeta = &types.ActiveTaskMeta{
		ID:        opts.ID,
		Type:      opts.Type,
		Status:    "running",
		Retries:   opts.Retries,
		Attempt:   opts.Retries + 1,
		StartedAt: opts.StartedAt,
	}
}

// FinishParams identifies the task finishing and its outcome.
type FinishParams struct {
	ID         string
	Type       string
	Status     string
	FinishedAt int64
	Retries    int
	Attempts   int
}

// FinishOptions controls checkpoint/last-task bookkeeping on finish.
type FinishOptions struct {
	RecordLastTask     bool
	PreserveCheckpoint bool
}

// DefaultFinishOptions matches spec.md §4.5's documented defaults
// ("{recordLastTask=true, preserveCheckpoint=false}").
func DefaultFinishOptions() FinishOptions {
	return FinishOptions{RecordLastTask: true, PreserveCheckpoint: false}
}

// FinishTaskContext records a task's finish, optionally snapshotting
// working memory into task_checkpoint for a future retry, and always
// clears active_task/active_task_meta and the working/ephemeral tiers
// (spec.md §4.5).
func (s *Session) FinishTaskContext(fin FinishParams, opts FinishOptions) {
	ctx := s.context
	working := ctx.Memory[types.TierWorking]
	if opts.PreserveCheckpoint && len(working) > 0 {
		ctx.TaskCheckpoint = &types.TaskCheckpoint{
			TaskID:        fin.ID,
			TaskType:      fin.Type,
			SavedAt:       fin.FinishedAt,
			Retries:       fin.Retries,
			Attempts:      fin.Attempts,
			WorkingMemory: types.CloneBlocks(working),
		}
	} else {
		ctx.TaskCheckpoint = nil
	}
	ctx.ActiveTask = nil
	ctx.ActiveTaskMeta = nil
	if opts.RecordLastTask {
		ctx.LastTask = &types.LastTask{
			ID:         fin.ID,
			Type:       fin.Type,
			Status:     fin.Status,
			FinishedAt: fin.FinishedAt,
			Retries:    fin.Retries,
			Attempts:   fin.Attempts,
		}
	}
	ctx.Memory[types.TierWorking] = []types.MemoryBlock{}
	ctx.Memory[types.TierEphemeral] = []types.MemoryBlock{}
}

// PrepareOptions configures PrepareUserTurn / PrepareInternalContinuationTurn.
type PrepareOptions struct {
	AdvanceRound      bool
	ProjectionOptions memctx.ProjectOptions
}

// refreshRuntime advances the round (if requested) and refreshes the
// display datetime; it never touches anything else (spec.md §4.5
// "refresh runtime (advance round + refresh datetime)").
func (s *Session) refreshRuntime(advanceRound bool) {
	if advanceRound {
		s.context.Runtime.Round++
	}
	s.context.Runtime.Datetime = formatDatetime(s.clock.Now())
}

// prepareTurn is the shared implementation behind PrepareUserTurn and
// PrepareInternalContinuationTurn: refresh runtime, project the context,
// upsert the injected-context system message, then append a user-role
// message with text.
func (s *Session) prepareTurn(text string, opts PrepareOptions) *types.ProjectionDebug {
	s.refreshRuntime(opts.AdvanceRound)

	result := memctx.ProjectContextSnapshotV2(s.context, opts.ProjectionOptions)
	s.context = result.Raw

	mc := result.ModelContext
	if s.injectedLite {
		mc = liteModelContext(mc)
	}
	payload := memctx.EncodeContextTagMessage(mc)
	s.messages.UpsertInjectedContext(payload)
	s.messages.AppendUser(text)

	return result.Debug
}

// liteModelContext strips memory tiers from the wire payload, keeping
// only runtime/todo/active-task/capabilities (Options.InjectedLite
// scoping decision, see DESIGN.md).
func liteModelContext(mc types.ModelContextV2) types.ModelContextV2 {
	mc.Memory = map[types.Tier][]types.MemoryBlock{}
	return mc
}

// PrepareUserTurn refreshes runtime, rebuilds the injected-context
// message, and appends a user-role message carrying text (spec.md §4.5).
// The round advances only when opts.AdvanceRound is true: a zero-value
// PrepareOptions leaves the round unchanged, so a caller that wants a new
// round passes PrepareOptions{AdvanceRound: true}.
func (s *Session) PrepareUserTurn(text string, opts PrepareOptions) *types.ProjectionDebug {
	return s.prepareTurn(text, opts)
}

// PrepareInternalContinuationTurn is PrepareUserTurn's counterpart for
// Runner-generated continuation prompts; AdvanceRound is false by
// default per spec.md §4.5.
func (s *Session) PrepareInternalContinuationTurn(text string, opts PrepareOptions) *types.ProjectionDebug {
	return s.prepareTurn(text, opts)
}

// ReplaceLatestUserTurn updates the newest user message in place,
// reporting whether one was found (spec.md §4.5).
func (s *Session) ReplaceLatestUserTurn(text string) bool {
	return s.messages.ReplaceLatestUser(text)
}

// Snapshot is {messages: deepCopy(messages), context: deepCopy(context)}
// (spec.md §4.5).
type Snapshot struct {
	Messages []types.Message
	Context  *types.AgentContext
}

// Snapshot returns a deep-copied view of the session's current state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Messages: s.messages.Clone().Messages,
		Context:  s.context.Clone(),
	}
}

// UpdateRuntimeDiagnostics writes runtime-only diagnostics without
// affecting memory or the round (spec.md §4.5).
func (s *Session) UpdateRuntimeDiagnostics(budget *types.BudgetInfo, tokenUsage *types.TokenUsage) {
	if budget != nil {
		b := *budget
		s.context.Runtime.Budget = &b
	}
	if tokenUsage != nil {
		t := *tokenUsage
		s.context.Runtime.TokenUsage = &t
	}
}

// TaskMeta is a convenience accessor mirroring active_task_meta's shape,
// used by the Runner to read back status without reaching into the
// context directly.
func (s *Session) TaskMeta() *types.ActiveTaskMeta {
	return s.context.ActiveTaskMeta
}

// String helps tests and logs identify a session without dumping the
// whole context.
func (s *Session) String() string {
	return fmt.Sprintf("session{workspace=%s round=%d}", s.workspace, s.context.Runtime.Round)
}
