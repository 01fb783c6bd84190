package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/types"
)

func writeTempFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLsHidesDotfilesByDefault(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "visible.txt", "x")
	writeTempFile(t, dir, ".hidden", "x")

	execCtx := &types.ToolExecutionContext{Workspace: dir}
	result := lsFactory(execCtx).Execute(map[string]any{"dirpath": dir}, CallMetadata{})
	entries := result["entries"].([]map[string]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible.txt", entries[0]["name"])
}

func TestLsAllShowsHiddenEntries(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "visible.txt", "x")
	writeTempFile(t, dir, ".hidden", "x")

	execCtx := &types.ToolExecutionContext{Workspace: dir}
	result := lsFactory(execCtx).Execute(map[string]any{"dirpath": dir, "all": true}, CallMetadata{})
	entries := result["entries"].([]map[string]any)
	assert.Len(t, entries, 2)
}

func TestLsDeniesSensitiveWorkspacePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".agent"), 0o755))

	execCtx := &types.ToolExecutionContext{Workspace: dir}
	result := lsFactory(execCtx).Execute(map[string]any{"dirpath": filepath.Join(dir, ".agent")}, CallMetadata{})
	assert.Equal(t, "Permission denied: ls path not allowed", result["error"])
}

func TestLsRejectsMissingDirpath(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := lsFactory(execCtx).Execute(map[string]any{}, CallMetadata{})
	assert.Equal(t, "Invalid input", result["error"])
}

func TestTreeRendersNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writeTempFile(t, dir, "top.txt", "x")
	writeTempFile(t, filepath.Join(dir, "sub"), "nested.txt", "x")

	execCtx := &types.ToolExecutionContext{Workspace: dir}
	result := treeFactory(execCtx).Execute(map[string]any{"dirpath": dir}, CallMetadata{})
	tree := result["tree"].(string)
	assert.Contains(t, tree, "sub/")
	assert.Contains(t, tree, "top.txt")
	assert.Contains(t, tree, "nested.txt")
}

func TestTreeRespectsLevelDepth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	writeTempFile(t, filepath.Join(dir, "a", "b"), "deep.txt", "x")

	execCtx := &types.ToolExecutionContext{Workspace: dir}
	result := treeFactory(execCtx).Execute(map[string]any{"dirpath": dir, "level": 1}, CallMetadata{})
	tree := result["tree"].(string)
	assert.NotContains(t, tree, "deep.txt")
}
