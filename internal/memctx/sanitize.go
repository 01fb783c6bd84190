package memctx

import (
	"strings"

	"github.com/agentcore/agentcore/pkg/types"
)

// Source is the origin of an incoming context patch (spec.md §4.3).
type Source string

const (
	SourceModel  Source = "model"
	SourceSystem Source = "system"
)

// SanitizeOptions configures SanitizeIncomingContextPatch.
type SanitizeOptions struct {
	Source Source // defaults to SourceModel when empty
}

// TodoPatch is the sanitized shape of an incoming `todo` patch sub-object.
type TodoPatch struct {
	Summary *string
	Total   *int
	Step    *int
	Cursor  *types.TodoCursor
}

// ContextPatch is the output of SanitizeIncomingContextPatch: a
// normalized patch ready for MergeContextWithMemoryPolicy.
type ContextPatch struct {
	TopLevel map[string]any
	Memory   map[types.Tier][]types.MemoryBlock
	Todo     *TodoPatch
}

var systemOwnedTopLevelKeys = map[string]bool{"runtime": true, "version": true, "memory": true}

// SanitizeIncomingContextPatch normalizes a raw, untrusted patch against
// the current context (spec.md §4.3). It is pure and idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x) (spec.md §8 property 1).
func SanitizeIncomingContextPatch(raw map[string]any, current *types.AgentContext, opts SanitizeOptions) ContextPatch {
	source := opts.Source
	if source == "" {
		source = SourceModel
	}

	out := ContextPatch{TopLevel: map[string]any{}}
	for k, v := range raw {
		if systemOwnedTopLevelKeys[k] || k == "todo" {
			continue
		}
		out.TopLevel[k] = deepCopyValue(v)
	}

	currentRound := 1
	if current != nil {
		currentRound = current.Runtime.Round
	}

	out.Memory = sanitizeMemoryPatch(raw["memory"], currentRound)
	out.Todo = sanitizeTodoPatch(raw["todo"], source)

	return out
}

func sanitizeMemoryPatch(raw any, currentRound int) map[types.Tier][]types.MemoryBlock {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	result := map[types.Tier][]types.MemoryBlock{}
	for _, tier := range types.OrderedTiers {
		entriesRaw, ok := m[string(tier)]
		if !ok {
			continue
		}
		arr, ok := entriesRaw.([]any)
		if !ok {
			continue
		}
		var normalized []types.MemoryBlock
		for _, e := range arr {
			entryMap, ok := e.(map[string]any)
			if !ok {
				continue
			}
			block, ok := NormalizeMemoryBlock(entryMap, tier, currentRound)
			if !ok {
				continue
			}
			normalized = append(normalized, block)
		}
		result[tier] = DedupTierByID(normalized)
	}
	return result
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if hi >= lo && v > hi {
		return hi
	}
	return v
}

func sanitizeTodoPatch(raw any, source Source) *TodoPatch {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	patch := &TodoPatch{}

	if source == SourceSystem {
		if s, ok := asString(m["summary"]); ok {
			patch.Summary = &s
		}
		total := 0
		haveTotal := false
		if v, ok := asFloat(m["total"]); ok {
			total = int(v)
			if total < 0 {
				total = 0
			}
			haveTotal = true
			patch.Total = &total
		}
		if v, ok := asFloat(m["step"]); ok {
			step := int(v)
			if haveTotal {
				step = clampInt(step, 0, total)
			} else if step < 0 {
				step = 0
			}
			patch.Step = &step
		}
	}

	// cursor is accepted regardless of source.
	if cursorRaw, ok := m["cursor"]; ok {
		patch.Cursor = sanitizeCursor(cursorRaw)
	}

	if patch.Summary == nil && patch.Total == nil && patch.Step == nil && patch.Cursor == nil {
		return nil
	}
	return patch
}

// sanitizeCursor validates the strict TodoCursor shape (spec.md §4.3).
// Any violation discards the entire cursor patch (returns nil).
func sanitizeCursor(raw any) *types.TodoCursor {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	v, ok := asFloat(m["v"])
	if !ok || int(v) != 1 {
		return nil
	}
	phaseStr, ok := asString(m["phase"])
	if !ok {
		return nil
	}
	phase := types.CursorPhase(phaseStr)
	switch phase {
	case types.PhasePlanning, types.PhaseDoing, types.PhaseVerifying, types.PhaseBlocked:
	default:
		return nil
	}
	nextStr, ok := asString(m["next"])
	if !ok {
		return nil
	}
	next := types.CursorNext(nextStr)
	switch next {
	case types.NextNone, types.NextTodoList, types.NextTodoAdd, types.NextTodoClearDone,
		types.NextTodoComplete, types.NextTodoReopen, types.NextTodoUpdate, types.NextTodoRemove:
	default:
		return nil
	}

	var targetID *int
	if raw, present := m["targetId"]; present && raw != nil {
		tv, ok := asFloat(raw)
		if !ok {
			return nil
		}
		i := int(tv)
		targetID = &i
	}

	requiresTarget := types.TargetedNexts[next]
	if requiresTarget {
		if targetID == nil || *targetID <= 0 {
			return nil
		}
	} else if targetID != nil {
		return nil
	}

	note := ""
	if n, ok := asString(m["note"]); ok {
		note = strings.TrimSpace(n)
		if len(note) > 120 {
			note = note[:120]
		}
	}

	return &types.TodoCursor{V: 1, Phase: phase, Next: next, TargetID: targetID, Note: note}
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyValue(vv)
		}
		return out
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
