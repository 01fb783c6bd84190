package tool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/types"
)

func requireTmux(t *testing.T) {
	t.Helper()
	if !tmuxAvailable() {
		t.Skip("tmux not available in this environment")
	}
}

func TestBackgroundRejectsInvalidSessionID(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := backgroundFactory(execCtx).Execute(map[string]any{"action": "inspect", "sessionId": "not valid!"}, CallMetadata{})
	assert.Equal(t, "Invalid sessionId", result["error"])
}

func TestBackgroundRejectsMissingAction(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := backgroundFactory(execCtx).Execute(map[string]any{}, CallMetadata{})
	assert.Equal(t, "Invalid input", result["error"])
}

func TestBackgroundStartRejectsMissingCwd(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := backgroundFactory(execCtx).Execute(map[string]any{
		"action": "start", "command": "echo hi", "cwd": "/does/not/exist",
	}, CallMetadata{})
	assert.Equal(t, "cwd does not exist", result["error"])
}

func TestBackgroundStartBlocksUnsafeCommand(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: t.TempDir()}
	result := backgroundFactory(execCtx).Execute(map[string]any{
		"action": "start", "command": "rm -rf /",
	}, CallMetadata{})
	assert.Equal(t, "Command blocked by builtin safety policy", result["error"])
}

func TestBackgroundLifecycle(t *testing.T) {
	requireTmux(t)
	ResetAvailabilityCachesForTest()

	dir := t.TempDir()
	execCtx := &types.ToolExecutionContext{Workspace: dir}
	def := backgroundFactory(execCtx)

	start := def.Execute(map[string]any{
		"action": "start", "command": "i=0; while [ $i -lt 20 ]; do echo tick$i; i=$((i+1)); sleep 0.1; done",
	}, CallMetadata{})
	require.Equal(t, "running", start["status"])
	id := start["sessionId"].(string)
	require.NotEmpty(t, id)

	list := def.Execute(map[string]any{"action": "list"}, CallMetadata{})
	sessions := list["sessions"].([]map[string]any)
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0]["sessionId"])

	time.Sleep(300 * time.Millisecond)

	inspect := def.Execute(map[string]any{"action": "inspect", "sessionId": id}, CallMetadata{})
	assert.Equal(t, true, inspect["alive"])

	logs := def.Execute(map[string]any{"action": "query_logs", "sessionId": id}, CallMetadata{})
	events := logs["events"].([]map[string]any)
	assert.NotEmpty(t, events)
	cursor := logs["cursor"].(string)
	require.NotEmpty(t, cursor)

	pane := def.Execute(map[string]any{"action": "capture_pane", "sessionId": id}, CallMetadata{})
	assert.NotEmpty(t, pane["content"])

	first := def.Execute(map[string]any{"action": "kill", "sessionId": id}, CallMetadata{})
	assert.Equal(t, "killed", first["status"])
	assert.Equal(t, true, first["success"])

	second := def.Execute(map[string]any{"action": "kill", "sessionId": id}, CallMetadata{})
	assert.Equal(t, "already_exited", second["status"])
	assert.Equal(t, true, second["success"])
}

func TestBackgroundQueryLogsRejectsMalformedCursor(t *testing.T) {
	requireTmux(t)
	ResetAvailabilityCachesForTest()

	dir := t.TempDir()
	execCtx := &types.ToolExecutionContext{Workspace: dir}
	def := backgroundFactory(execCtx)

	start := def.Execute(map[string]any{"action": "start", "command": "sleep 0.2"}, CallMetadata{})
	id := start["sessionId"].(string)

	result := def.Execute(map[string]any{"action": "query_logs", "sessionId": id, "cursor": "!!!"}, CallMetadata{})
	assert.Equal(t, "Invalid cursor", result["error"])

	def.Execute(map[string]any{"action": "kill", "sessionId": id}, CallMetadata{})
}
