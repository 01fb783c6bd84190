package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/agentcore/agentcore/pkg/types"
)

// Load loads the effective PolicyConfig for workspace, in priority order
// (later sources win on a per-field basis):
//  1. Global config (~/.config/agentcore/agent.config.json)
//  2. Workspace config ({workspace}/agent.config.json)
//  3. Environment variable overrides
//
// A missing file at any layer is not an error — Load always returns a
// usable config (spec.md §4.1's "empty allow list means allow by
// default").
func Load(workspace string) (*types.PolicyConfig, error) {
	cfg := types.DefaultPolicyConfig()

	if err := loadConfigFile(GlobalConfigPath(), &cfg); err != nil {
		return nil, err
	}
	if workspace != "" {
		if err := loadConfigFile(WorkspaceConfigPath(workspace), &cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// loadConfigFile reads and JSONC-strips path, merging into cfg. A missing
// file is silently skipped; a malformed one is a real error so typos in
// the policy file don't silently disable every rule.
func loadConfigFile(path string, cfg *types.PolicyConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	data = stripJSONComments(data)

	var file types.PolicyConfig
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	mergeConfig(cfg, &file)
	return nil
}

// stripJSONComments removes // and /* */ comments from JSONC so the
// policy file can be annotated (spec.md §9 carries over the teacher's
// JSONC support as the ambient config format).
func stripJSONComments(data []byte) []byte {
	singleLine := regexp.MustCompile(`//.*$`)
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLine.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))

	multiLine := regexp.MustCompile(`/\*[\s\S]*?\*/`)
	return multiLine.ReplaceAll(data, nil)
}

// mergeConfig merges source into target: permission rule sets replace
// per-tool (a workspace file fully owns its tool's allow/deny lists
// rather than appending to the global one — clearer than silently
// accreting rules across layers), execution fields overwrite when
// explicitly set (non-zero/true).
func mergeConfig(target, source *types.PolicyConfig) {
	if source.Permissions.Permissions != nil {
		if target.Permissions.Permissions == nil {
			target.Permissions.Permissions = map[string]types.PermissionSpec{}
		}
		for tool, spec := range source.Permissions.Permissions {
			target.Permissions.Permissions[tool] = spec
		}
	}
	if source.Execution.MaxModelStepsPerRun > 0 {
		target.Execution.MaxModelStepsPerRun = source.Execution.MaxModelStepsPerRun
	}
	if source.Execution.MaxModelStepsPerTask > 0 {
		target.Execution.MaxModelStepsPerTask = source.Execution.MaxModelStepsPerTask
	}
	if source.Execution.MaxContinuationRuns > 0 {
		target.Execution.MaxContinuationRuns = source.Execution.MaxContinuationRuns
	}
	target.Execution.AutoContinueOnStepLimit = source.Execution.AutoContinueOnStepLimit || target.Execution.AutoContinueOnStepLimit
	if source.Execution.ToolBudgets != nil {
		if target.Execution.ToolBudgets == nil {
			target.Execution.ToolBudgets = map[string]int{}
		}
		for tool, n := range source.Execution.ToolBudgets {
			target.Execution.ToolBudgets[tool] = n
		}
	}
}

// applyEnvOverrides applies the small set of environment overrides the
// runtime recognizes directly, bypassing the config file entirely.
func applyEnvOverrides(cfg *types.PolicyConfig) {
	if v := os.Getenv("AGENTCORE_MAX_MODEL_STEPS_PER_RUN"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Execution.MaxModelStepsPerRun = n
		}
	}
	if v := os.Getenv("AGENTCORE_MAX_MODEL_STEPS_PER_TASK"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Execution.MaxModelStepsPerTask = n
		}
	}
	if v := os.Getenv("AGENTCORE_MAX_CONTINUATION_RUNS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Execution.MaxContinuationRuns = n
		}
	}
	if v := os.Getenv("AGENTCORE_AUTO_CONTINUE_ON_STEP_LIMIT"); v != "" {
		cfg.Execution.AutoContinueOnStepLimit = v == "1" || v == "true"
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: non-positive value %q", s)
	}
	return n, nil
}

// Save writes cfg as indented JSON to path, creating parent directories
// as needed.
func Save(cfg *types.PolicyConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
