package memctx

import (
	"math"
	"unicode/utf8"

	"github.com/agentcore/agentcore/pkg/types"
)

// BuildInjectedContextProjection strips projection-only top-level fields
// (task_checkpoint, last_task) and runs the projection compaction
// (spec.md §4.3). It returns the injected context and a debug record.
func BuildInjectedContextProjection(raw *types.AgentContext) (*types.AgentContext, *types.ProjectionDebug) {
	debug := types.NewProjectionDebug()
	injected := raw.Clone()
	injected.TaskCheckpoint = nil
	injected.LastTask = nil
	injected.Memory = compactMemory(injected.Memory, CompactProjection, injected.Runtime.Round, debug)
	return injected, debug
}

// ProjectOptions configures ProjectContextSnapshotV2.
type ProjectOptions struct {
	MaxItemsByTier     map[types.Tier]int
	TokenBudget        int // 0 means unbounded
	DropTerminalWorking *bool // defaults to true
}

// ProjectResult bundles the three artifacts ProjectContextSnapshotV2
// produces.
type ProjectResult struct {
	Raw          *types.AgentContext
	Injected     *types.AgentContext
	ModelContext types.ModelContextV2
	Debug        *types.ProjectionDebug
}

// tokenTrimOrder is the order tiers are trimmed in when over token budget
// (spec.md §4.3).
var tokenTrimOrder = []types.Tier{types.TierEphemeral, types.TierWorking, types.TierLongterm, types.TierCore}

// ProjectContextSnapshotV2 produces the raw compacted context, the
// injected (projected) context, and the on-wire ModelContextV2 whitelist,
// trimming further against an optional estimated token budget.
func ProjectContextSnapshotV2(raw *types.AgentContext, opts ProjectOptions) ProjectResult {
	rawCompacted := CompactRawContextForStorage(raw)

	dropTerminal := true
	if opts.DropTerminalWorking != nil {
		dropTerminal = *opts.DropTerminalWorking
	}

	debug := types.NewProjectionDebug()
	injected := rawCompacted.Clone()
	injected.TaskCheckpoint = nil
	injected.LastTask = nil
	injected.Memory = compactMemory(injected.Memory, CompactProjection, injected.Runtime.Round, debug)
	if !dropTerminal {
		// caller opted out of dropping terminal working blocks: restore
		// them from the raw-compacted source, still subject to the
		// tier's quality/TTL thresholds (but not the terminal-status
		// drop).
		injected.Memory[types.TierWorking] = compactWorkingKeepingTerminal(rawCompacted.Memory[types.TierWorking], injected.Runtime.Round)
	}

	if opts.MaxItemsByTier != nil {
		for tier, max := range opts.MaxItemsByTier {
			blocks := injected.Memory[tier]
			if max >= 0 && len(blocks) > max {
				injected.Memory[tier] = blocks[:max]
			}
		}
	}

	modelCtx := ToModelContextV2(injected)

	if opts.TokenBudget > 0 {
		trimToTokenBudget(&modelCtx, opts.TokenBudget, debug)
	}

	return ProjectResult{Raw: rawCompacted, Injected: injected, ModelContext: modelCtx, Debug: debug}
}

func compactWorkingKeepingTerminal(blocks []types.MemoryBlock, currentRound int) []types.MemoryBlock {
	policy := types.TierPolicies[types.TierWorking]
	deduped := DedupTierByID(blocks)
	out := make([]types.MemoryBlock, 0, len(deduped))
	for _, b := range deduped {
		if !isValidBlock(b) || b.Decay > policy.MaxDecay || b.Confidence < policy.MinConfidence {
			continue
		}
		if policy.MaxAgeRounds > 0 && (currentRound-b.Round) > policy.MaxAgeRounds {
			continue
		}
		out = append(out, b)
	}
	if len(out) > policy.MaxItems {
		out = out[:policy.MaxItems]
	}
	return out
}

// ToModelContextV2 is a pure whitelist projection (spec.md §4.3).
func ToModelContextV2(ctx *types.AgentContext) types.ModelContextV2 {
	out := types.ModelContextV2{
		Version: ctx.Version,
		Runtime: types.ModelRuntime{
			Round:     ctx.Runtime.Round,
			Workspace: ctx.Runtime.Workspace,
			Datetime:  ctx.Runtime.Datetime,
			StartupAt: ctx.Runtime.StartupAt,
		},
		Memory:       cloneTierMap(ctx.Memory),
		Todo:         ctx.Todo,
		ActiveTask:   ctx.ActiveTask,
		Capabilities: ctx.Capabilities,
	}
	if ctx.ActiveTaskMeta != nil {
		out.ActiveTaskMeta = &types.ModelActiveTaskMeta{
			ID:      ctx.ActiveTaskMeta.ID,
			Type:    ctx.ActiveTaskMeta.Type,
			Status:  ctx.ActiveTaskMeta.Status,
			Retries: ctx.ActiveTaskMeta.Retries,
			Attempt: ctx.ActiveTaskMeta.Attempt,
			Execution: ctx.ActiveTaskMeta.Execution,
		}
	}
	return out
}

// trimToTokenBudget estimates token count as ceil(utf8Len(JSON)/3.8) and,
// if over budget, removes items from tier tails in tokenTrimOrder until
// the estimate fits or a tier is empty (spec.md §4.3).
func trimToTokenBudget(mc *types.ModelContextV2, budget int, debug *types.ProjectionDebug) {
	for estimateTokens(mc) > budget {
		trimmedAny := false
		for _, tier := range tokenTrimOrder {
			blocks := mc.Memory[tier]
			if len(blocks) == 0 {
				continue
			}
			removed := blocks[len(blocks)-1]
			mc.Memory[tier] = blocks[:len(blocks)-1]
			if debug != nil {
				debug.Record(types.DropTokenBudgetTrimmed, tier, removed)
			}
			trimmedAny = true
			if estimateTokens(mc) <= budget {
				return
			}
		}
		if !trimmedAny {
			return // every tier empty; cannot trim further
		}
	}
}

func cloneTierMap(m map[types.Tier][]types.MemoryBlock) map[types.Tier][]types.MemoryBlock {
	out := make(map[types.Tier][]types.MemoryBlock, len(m))
	for t, blocks := range m {
		out[t] = types.CloneBlocks(blocks)
	}
	return out
}

func estimateTokens(mc *types.ModelContextV2) int {
	encoded := EncodeModelContext(*mc)
	length := utf8.RuneCountInString(encoded)
	return int(math.Ceil(float64(length) / 3.8))
}
