package tool

import (
	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

func memoryUnavailable() map[string]any {
	return errorField("memory command is not available in runtime environment")
}

func requireMemoryCoordinator(execCtx *types.ToolExecutionContext) (types.MemoryCoordinator, bool) {
	workspace := ""
	if execCtx != nil {
		workspace = execCtx.Workspace
	}
	if !policy.CanUseMemory(permsOf(execCtx), workspace) {
		return nil, false
	}
	if execCtx == nil || execCtx.MemoryCoordinator == nil {
		return nil, false
	}
	return execCtx.MemoryCoordinator, true
}

func blockRecord(b types.MemoryBlock) map[string]any {
	return map[string]any{
		"id":         b.ID,
		"type":       b.Type,
		"decay":      b.Decay,
		"confidence": b.Confidence,
		"round":      b.Round,
		"tags":       b.Tags,
		"content":    b.Content,
		"status":     string(b.Status),
		"quality":    b.Quality(),
	}
}

// memoryListFactory implements `memory_list {tier?}` (SPEC_FULL.md §C.3):
// reads memory blocks through execCtx.MemoryCoordinator, passing the tier
// (empty when absent) to ListBlocks.
func memoryListFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "List the agent's memory blocks.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			coord, ok := requireMemoryCoordinator(execCtx)
			if !ok {
				if execCtx != nil && execCtx.MemoryCoordinator == nil {
					return memoryUnavailable()
				}
				return errorField("Permission denied: memory not allowed")
			}
			tier, _ := stringArg(input, "tier")

			blocks, err := coord.ListBlocks(tier)
			if err != nil {
				return errorFieldDetail("Failed to list memory", err.Error())
			}
			records := make([]map[string]any, 0, len(blocks))
			for _, b := range blocks {
				records = append(records, blockRecord(b))
			}
			return map[string]any{"blocks": records}
		},
	}
}

// memoryNoteFactory implements `memory_note {tier, content, type?, decay?,
// confidence?, tags?}` (SPEC_FULL.md §C.3): builds an "add" patch for tier
// and hands it to execCtx.MemoryCoordinator. The tool itself enforces no
// tier caps or content/tag limits; that is up to the coordinator, and
// this module contains no MemoryCoordinator implementation.
func memoryNoteFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Record a new memory block.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			coord, ok := requireMemoryCoordinator(execCtx)
			if !ok {
				if execCtx != nil && execCtx.MemoryCoordinator == nil {
					return memoryUnavailable()
				}
				return errorField("Permission denied: memory not allowed")
			}
			tier, ok := stringArg(input, "tier")
			if !ok || tier == "" {
				return errorField("Invalid input")
			}
			content, ok := stringArg(input, "content")
			if !ok || content == "" {
				return errorField("Invalid input")
			}
			blockType, _ := stringArg(input, "type")
			if blockType == "" {
				blockType = "note"
			}
			tags, _ := stringSliceArg(input, "tags")

			block := map[string]any{
				"type":    blockType,
				"content": content,
				"tags":    tags,
			}
			for _, key := range []string{"decay", "confidence"} {
				if v, ok := input[key]; ok {
					block[key] = v
				}
			}
			patch := map[string]any{
				"op":    "add",
				"tier":  tier,
				"block": block,
			}
			result, err := coord.ApplyPatch(patch)
			if err != nil {
				return errorFieldDetail("Failed to record memory", err.Error())
			}
			return result
		},
	}
}

// memoryForgetFactory implements `memory_forget {tier, id}` (SPEC_FULL.md
// §C.3): removes one block by id through the same patch seam.
func memoryForgetFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Remove a memory block.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			coord, ok := requireMemoryCoordinator(execCtx)
			if !ok {
				if execCtx != nil && execCtx.MemoryCoordinator == nil {
					return memoryUnavailable()
				}
				return errorField("Permission denied: memory not allowed")
			}
			tier, ok := stringArg(input, "tier")
			if !ok || tier == "" {
				return errorField("Invalid input")
			}
			id, ok := stringArg(input, "id")
			if !ok || id == "" {
				return errorField("Invalid input")
			}

			patch := map[string]any{"op": "remove", "tier": tier, "id": id}
			result, err := coord.ApplyPatch(patch)
			if err != nil {
				return errorFieldDetail("Failed to forget memory", err.Error())
			}
			return result
		},
	}
}
