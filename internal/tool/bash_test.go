package tool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/types"
)

func TestBashOnceRunsCommandAndReportsDuration(t *testing.T) {
	dir := t.TempDir()
	execCtx := &types.ToolExecutionContext{Workspace: dir}
	def := bashFactory(execCtx)

	result := def.Execute(map[string]any{"command": "echo hello"}, CallMetadata{})
	assert.Equal(t, "hello\n", result["stdout"])
	assert.Equal(t, 0, result["exitCode"])
	assert.False(t, result["timedOut"].(bool))
	assert.GreaterOrEqual(t, result["durationMs"].(int64), int64(0))
}

func TestBashOnceRejectsMissingCommand(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := bashFactory(execCtx).Execute(map[string]any{}, CallMetadata{})
	assert.Equal(t, "Invalid input", result["error"])
}

func TestBashOnceBlocksUnsafeCommand(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := bashFactory(execCtx).Execute(map[string]any{"command": "rm -rf /"}, CallMetadata{})
	assert.Equal(t, "Command blocked by builtin safety policy", result["error"])
	assert.NotEmpty(t, result["ruleId"])
}

func TestBashModeBackgroundReturnsMigrationError(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := bashFactory(execCtx).Execute(map[string]any{"mode": "background", "command": "sleep 1"}, CallMetadata{})
	assert.Equal(t, "background", result["tool"])
	assert.Contains(t, result["error"], "background")
}

func TestBashNormalStartQueryKillLifecycle(t *testing.T) {
	dir := t.TempDir()
	execCtx := &types.ToolExecutionContext{Workspace: dir}
	def := bashFactory(execCtx)

	start := def.Execute(map[string]any{
		"mode": "normal", "action": "start", "command": "i=0; while [ $i -lt 50 ]; do echo line$i; i=$((i+1)); sleep 0.05; done",
	}, CallMetadata{})
	require.Equal(t, "running", start["status"])
	sessionID := start["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	// Give the process a moment to produce some output.
	time.Sleep(150 * time.Millisecond)

	query := def.Execute(map[string]any{"mode": "normal", "action": "query", "sessionId": sessionID}, CallMetadata{})
	require.Equal(t, "running", query["status"])
	events := query["events"].([]map[string]any)
	assert.NotEmpty(t, events)
	cursor := query["cursor"].(string)
	require.NotEmpty(t, cursor)

	// A query with the returned cursor should not replay old events.
	follow := def.Execute(map[string]any{"mode": "normal", "action": "query", "sessionId": sessionID, "cursor": cursor}, CallMetadata{})
	followEvents := follow["events"].([]map[string]any)
	for _, e := range followEvents {
		assert.GreaterOrEqual(t, e["seq"].(int), len(events))
	}

	first := def.Execute(map[string]any{"mode": "normal", "action": "kill", "sessionId": sessionID}, CallMetadata{})
	assert.Equal(t, "killed", first["status"])
	assert.Equal(t, true, first["success"])

	second := def.Execute(map[string]any{"mode": "normal", "action": "kill", "sessionId": sessionID}, CallMetadata{})
	assert.Equal(t, "already_exited", second["status"])
	assert.Equal(t, true, second["success"])
}

func TestBashNormalQueryUnknownSession(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := bashFactory(execCtx).Execute(map[string]any{"mode": "normal", "action": "query", "sessionId": "does-not-exist"}, CallMetadata{})
	assert.Equal(t, "Unknown bash session", result["error"])
}

func TestBashNormalQueryRejectsMalformedCursor(t *testing.T) {
	dir := t.TempDir()
	execCtx := &types.ToolExecutionContext{Workspace: dir}
	def := bashFactory(execCtx)

	start := def.Execute(map[string]any{"mode": "normal", "action": "start", "command": "sleep 0.2"}, CallMetadata{})
	sessionID := start["sessionId"].(string)

	result := def.Execute(map[string]any{"mode": "normal", "action": "query", "sessionId": sessionID, "cursor": "not-a-cursor"}, CallMetadata{})
	assert.Equal(t, "Invalid cursor", result["error"])

	def.Execute(map[string]any{"mode": "normal", "action": "kill", "sessionId": sessionID}, CallMetadata{})
}
