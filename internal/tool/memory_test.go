package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/types"
)

type fakeMemoryCoordinator struct {
	blocks      []types.MemoryBlock
	lastPatch   map[string]any
	applyResult map[string]any
	applyErr    error
}

func (f *fakeMemoryCoordinator) ListBlocks(tier string) ([]types.MemoryBlock, error) {
	return f.blocks, nil
}

func (f *fakeMemoryCoordinator) ApplyPatch(patch map[string]any) (map[string]any, error) {
	f.lastPatch = patch
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	if f.applyResult != nil {
		return f.applyResult, nil
	}
	return map[string]any{"ok": true}, nil
}

func newMemoryExecCtx(coord types.MemoryCoordinator) *types.ToolExecutionContext {
	return &types.ToolExecutionContext{Workspace: "/w", MemoryCoordinator: coord}
}

func TestMemoryListReturnsBlocks(t *testing.T) {
	coord := &fakeMemoryCoordinator{blocks: []types.MemoryBlock{
		{ID: "a", Type: "note", Content: "x", Decay: 0.1, Confidence: 0.9},
	}}
	execCtx := newMemoryExecCtx(coord)
	result := memoryListFactory(execCtx).Execute(map[string]any{"tier": "core"}, CallMetadata{})
	blocks := result["blocks"].([]map[string]any)
	require.Len(t, blocks, 1)
	assert.Equal(t, "a", blocks[0]["id"])
}

func TestMemoryNoteBuildsAddPatch(t *testing.T) {
	coord := &fakeMemoryCoordinator{}
	execCtx := newMemoryExecCtx(coord)
	result := memoryNoteFactory(execCtx).Execute(map[string]any{
		"tier": "working", "content": "remember this",
	}, CallMetadata{})
	_, hasErr := result["error"]
	require.False(t, hasErr)

	require.NotNil(t, coord.lastPatch)
	assert.Equal(t, "add", coord.lastPatch["op"])
	assert.Equal(t, "working", coord.lastPatch["tier"])
	block := coord.lastPatch["block"].(map[string]any)
	assert.Equal(t, "remember this", block["content"])
	assert.Equal(t, "note", block["type"])
}

func TestMemoryNoteRejectsEmptyContent(t *testing.T) {
	execCtx := newMemoryExecCtx(&fakeMemoryCoordinator{})
	result := memoryNoteFactory(execCtx).Execute(map[string]any{"tier": "working", "content": ""}, CallMetadata{})
	assert.Equal(t, "Invalid input", result["error"])
}

func TestMemoryForgetBuildsRemovePatch(t *testing.T) {
	coord := &fakeMemoryCoordinator{}
	execCtx := newMemoryExecCtx(coord)
	result := memoryForgetFactory(execCtx).Execute(map[string]any{"tier": "core", "id": "b1"}, CallMetadata{})
	_, hasErr := result["error"]
	require.False(t, hasErr)
	assert.Equal(t, "remove", coord.lastPatch["op"])
	assert.Equal(t, "b1", coord.lastPatch["id"])
}

func TestMemoryUnavailableWithoutCoordinator(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: "/w"}
	result := memoryListFactory(execCtx).Execute(map[string]any{}, CallMetadata{})
	assert.Equal(t, "memory command is not available in runtime environment", result["error"])
}

func TestMemoryDeniedByPolicy(t *testing.T) {
	execCtx := &types.ToolExecutionContext{
		Workspace:         "/w",
		MemoryCoordinator: &fakeMemoryCoordinator{},
		Permissions:       &types.Permissions{Permissions: map[string]types.PermissionSpec{"memory": {Deny: []string{".*"}}}},
	}
	result := memoryListFactory(execCtx).Execute(map[string]any{}, CallMetadata{})
	assert.Equal(t, "Permission denied: memory not allowed", result["error"])
}
