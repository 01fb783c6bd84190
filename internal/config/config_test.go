package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/types"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldHome := os.Getenv("HOME")
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("HOME", tmpDir)
	os.Unsetenv("XDG_CONFIG_HOME")
	t.Cleanup(func() {
		os.Setenv("HOME", oldHome)
		if oldXDG != "" {
			os.Setenv("XDG_CONFIG_HOME", oldXDG)
		}
	})
	return tmpDir
}

func TestLoadDefaults(t *testing.T) {
	isolateHome(t)
	ws := t.TempDir()

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultExecutionConfig(), cfg.Execution)
	assert.Empty(t, cfg.Permissions.Permissions)
}

func TestLoadWorkspaceOverridesGlobal(t *testing.T) {
	isolateHome(t)
	ws := t.TempDir()

	globalCfg := types.PolicyConfig{
		Permissions: types.Permissions{Permissions: map[string]types.PermissionSpec{
			"read": {Allow: []string{"^/global/.*"}},
		}},
		Execution: types.ExecutionConfig{MaxModelStepsPerRun: 5, MaxModelStepsPerTask: 20, MaxContinuationRuns: 1},
	}
	require.NoError(t, Save(&globalCfg, GlobalConfigPath()))

	workspaceCfg := types.PolicyConfig{
		Permissions: types.Permissions{Permissions: map[string]types.PermissionSpec{
			"write": {Deny: []string{"^/etc/.*"}},
		}},
		Execution: types.ExecutionConfig{MaxModelStepsPerTask: 100},
	}
	require.NoError(t, Save(&workspaceCfg, WorkspaceConfigPath(ws)))

	cfg, err := Load(ws)
	require.NoError(t, err)

	// global-only tool rule survives
	assert.Equal(t, []string{"^/global/.*"}, cfg.Permissions.Permissions["read"].Allow)
	// workspace-only tool rule present
	assert.Equal(t, []string{"^/etc/.*"}, cfg.Permissions.Permissions["write"].Deny)
	// global execution field survives where workspace didn't set it
	assert.Equal(t, 5, cfg.Execution.MaxModelStepsPerRun)
	// workspace execution field overrides global
	assert.Equal(t, 100, cfg.Execution.MaxModelStepsPerTask)
}

func TestLoadStripsJSONComments(t *testing.T) {
	isolateHome(t)
	ws := t.TempDir()

	jsonc := []byte(`{
		// allow only the workspace tree
		"permissions": {
			"read": { "allow": ["^/ws/.*"] } /* inline comment */
		},
		"execution": { "maxContinuationRuns": 7 }
	}`)
	require.NoError(t, os.WriteFile(WorkspaceConfigPath(ws), jsonc, 0o644))

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, []string{"^/ws/.*"}, cfg.Permissions.Permissions["read"].Allow)
	assert.Equal(t, 7, cfg.Execution.MaxContinuationRuns)
}

func TestLoadMissingFilesIsNotAnError(t *testing.T) {
	isolateHome(t)
	ws := filepath.Join(t.TempDir(), "nonexistent")

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	isolateHome(t)
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(WorkspaceConfigPath(ws), []byte("{not json"), 0o644))

	_, err := Load(ws)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	isolateHome(t)
	ws := t.TempDir()

	os.Setenv("AGENTCORE_MAX_MODEL_STEPS_PER_RUN", "3")
	os.Setenv("AGENTCORE_AUTO_CONTINUE_ON_STEP_LIMIT", "false")
	t.Cleanup(func() {
		os.Unsetenv("AGENTCORE_MAX_MODEL_STEPS_PER_RUN")
		os.Unsetenv("AGENTCORE_AUTO_CONTINUE_ON_STEP_LIMIT")
	})

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Execution.MaxModelStepsPerRun)
	assert.False(t, cfg.Execution.AutoContinueOnStepLimit)
}

func TestWatcherReloadsOnWorkspaceChange(t *testing.T) {
	isolateHome(t)
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(WorkspaceConfigPath(ws), []byte(`{"execution":{"maxContinuationRuns":1}}`), 0o644))

	results := make(chan *PolicyConfigResult, 4)
	w, err := NewWatcher(ws, func(r *PolicyConfigResult) { results <- r })
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(WorkspaceConfigPath(ws), []byte(`{"execution":{"maxContinuationRuns":9}}`), 0o644))

	select {
	case r := <-results:
		require.NoError(t, r.Err)
		assert.Equal(t, 9, r.Config.Execution.MaxContinuationRuns)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
