package memctx

import (
	"sort"

	"github.com/agentcore/agentcore/pkg/types"
)

// CompactMode selects between the larger raw-retention caps/TTL and the
// smaller projection caps/TTL (spec.md §4.3, §9 "Sanitization threshold
// split" — both variants share one implementation here, parameterized by
// mode, so call sites converge on a single code path as the design notes
// recommend).
type CompactMode int

const (
	CompactRaw CompactMode = iota
	CompactProjection
)

func isValidBlock(b types.MemoryBlock) bool {
	return b.ID != "" && b.Type != "" && b.Content != ""
}

func tierMaxAge(policy types.TierPolicy, tier types.Tier, b types.MemoryBlock, mode CompactMode) int {
	if mode == CompactProjection {
		return policy.MaxAgeRounds
	}
	switch tier {
	case types.TierWorking:
		if b.Status.IsTerminal() {
			return policy.RawMaxAgeRounds
		}
		return 0
	case types.TierEphemeral:
		return policy.RawMaxAgeRounds
	default:
		return 0
	}
}

func compactTier(blocks []types.MemoryBlock, tier types.Tier, mode CompactMode, currentRound int, debug *types.ProjectionDebug) []types.MemoryBlock {
	policy := types.TierPolicies[tier]
	deduped := DedupTierByID(blocks)

	filtered := make([]types.MemoryBlock, 0, len(deduped))
	for _, b := range deduped {
		if currentRound > 0 && b.Round > currentRound {
			b.Round = currentRound
		}
		if !isValidBlock(b) {
			if debug != nil {
				debug.Record(types.DropInvalidBlock, tier, b)
			}
			continue
		}
		if mode == CompactProjection && tier == types.TierWorking && b.Status.IsTerminal() {
			if debug != nil {
				debug.Record(types.DropWorkingStatusTerminal, tier, b)
			}
			continue
		}
		if b.Decay > policy.MaxDecay {
			if debug != nil {
				debug.Record(types.DropThresholdDecay, tier, b)
			}
			continue
		}
		if b.Confidence < policy.MinConfidence {
			if debug != nil {
				debug.Record(types.DropThresholdConfidence, tier, b)
			}
			continue
		}
		if maxAge := tierMaxAge(policy, tier, b, mode); maxAge > 0 && (currentRound-b.Round) > maxAge {
			if debug != nil {
				debug.Record(types.DropExpiredByRound, tier, b)
			}
			continue
		}
		filtered = append(filtered, b)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		qi, qj := filtered[i].Quality(), filtered[j].Quality()
		if qi != qj {
			return qi > qj
		}
		if filtered[i].Round != filtered[j].Round {
			return filtered[i].Round > filtered[j].Round
		}
		return filtered[i].ID < filtered[j].ID
	})

	limit := policy.MaxItems
	if mode == CompactRaw {
		limit = policy.RawMaxItems
	}
	if limit > 0 && len(filtered) > limit {
		if debug != nil {
			for _, b := range filtered[limit:] {
				debug.Record(types.DropOverMaxItems, tier, b)
			}
		}
		filtered = filtered[:limit]
	}
	return filtered
}

// compactMemory applies compactTier to every tier present on the context,
// in the stable tier order.
func compactMemory(memory map[types.Tier][]types.MemoryBlock, mode CompactMode, currentRound int, debug *types.ProjectionDebug) map[types.Tier][]types.MemoryBlock {
	out := map[types.Tier][]types.MemoryBlock{}
	for _, tier := range types.OrderedTiers {
		blocks, ok := memory[tier]
		if !ok {
			continue
		}
		if debug != nil {
			debug.RawCounts[tier] = len(blocks)
		}
		compacted := compactTier(blocks, tier, mode, currentRound, debug)
		out[tier] = compacted
		if debug != nil {
			debug.InjectedCounts[tier] = len(compacted)
		}
	}
	return out
}

// CompactContextMemory and CompactRawContextForStorage both exist per
// spec.md §4.3; this codebase converges both call sites on one
// implementation distinguished only by CompactMode, per the design notes.

// CompactContextMemory runs the projection-mode compaction over a context
// copy (caps/TTL matching the injected-context budget) without touching
// top-level fields.
func CompactContextMemory(ctx *types.AgentContext) *types.AgentContext {
	out := ctx.Clone()
	out.Memory = compactMemory(out.Memory, CompactProjection, out.Runtime.Round, nil)
	return out
}

// CompactRawContextForStorage runs the raw-mode compaction (larger caps,
// terminal-working/ephemeral TTL only) over a context copy. This is the
// variant Session uses after every merge, before writing the context back
// (spec.md §4.5 mergeExtractedContext: "sanitize -> merge -> raw-compact").
func CompactRawContextForStorage(ctx *types.AgentContext) *types.AgentContext {
	out := ctx.Clone()
	out.Memory = compactMemory(out.Memory, CompactRaw, out.Runtime.Round, nil)
	return out
}
