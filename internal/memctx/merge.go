package memctx

import (
	"github.com/agentcore/agentcore/pkg/types"
)

// MergeContextWithMemoryPolicy deep-merges a sanitized patch into current,
// returning a new AgentContext (current is never mutated). runtime and
// version are always copied from current (spec.md §4.3, §8 property 2).
func MergeContextWithMemoryPolicy(current *types.AgentContext, patch ContextPatch) *types.AgentContext {
	next := current.Clone()

	// top-level generic keys: arrays replace, objects merge recursively.
	// project/capabilities are the two typed top-level maps a patch may
	// address this way; everything else lands in Extra. active_task,
	// active_task_meta, last_task and task_checkpoint are session-owned
	// bookkeeping set exclusively by beginTaskContext/finishTaskContext,
	// not by generic context patches.
	for k, v := range patch.TopLevel {
		switch k {
		case "project":
			if m, ok := v.(map[string]any); ok {
				next.Project = deepMergeObject(next.Project, m)
			}
		case "capabilities":
			if m, ok := v.(map[string]any); ok {
				next.Capabilities = deepMergeObject(next.Capabilities, m)
			}
		default:
			next.Extra = deepMergeObject(next.Extra, map[string]any{k: v})
		}
	}

	// memory tiers merge by id: existing preserved, incoming of the same
	// id overwrites field-by-field, new ids appended.
	if patch.Memory != nil {
		if next.Memory == nil {
			next.Memory = map[types.Tier][]types.MemoryBlock{}
		}
		for _, tier := range types.OrderedTiers {
			incoming, ok := patch.Memory[tier]
			if !ok {
				continue
			}
			next.Memory[tier] = mergeTier(next.Memory[tier], incoming)
		}
	}

	// todo merges as an object: cursor and progress fields independently
	// settable.
	if patch.Todo != nil {
		if next.Todo == nil {
			next.Todo = &types.TodoProgress{}
		}
		if patch.Todo.Summary != nil {
			next.Todo.Summary = *patch.Todo.Summary
		}
		if patch.Todo.Total != nil {
			next.Todo.Total = *patch.Todo.Total
		}
		if patch.Todo.Step != nil {
			next.Todo.Step = *patch.Todo.Step
		}
		if patch.Todo.Cursor != nil {
			next.Todo.Cursor = patch.Todo.Cursor
		}
	}

	// runtime and version are never overwritten by a patch.
	next.Runtime = current.Runtime.Clone()
	next.Version = current.Version

	return next
}

func mergeTier(existing, incoming []types.MemoryBlock) []types.MemoryBlock {
	order := make([]string, 0, len(existing)+len(incoming))
	byID := make(map[string]types.MemoryBlock, len(existing)+len(incoming))
	for _, b := range existing {
		byID[b.ID] = b
		order = append(order, b.ID)
	}
	for _, b := range incoming {
		if _, ok := byID[b.ID]; !ok {
			order = append(order, b.ID)
		}
		byID[b.ID] = b // incoming overwrites field-by-field (whole block replaces, since
		// the source representation is already a fully-normalized block)
	}
	out := make([]types.MemoryBlock, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

func deepMergeObject(target, source map[string]any) map[string]any {
	if target == nil {
		target = map[string]any{}
	}
	out := make(map[string]any, len(target))
	for k, v := range target {
		out[k] = v
	}
	for k, v := range source {
		if sm, ok := v.(map[string]any); ok {
			if existing, ok2 := out[k].(map[string]any); ok2 {
				out[k] = deepMergeObject(existing, sm)
				continue
			}
		}
		// arrays (and everything else) replace outright.
		out[k] = deepCopyValue(v)
	}
	return out
}
