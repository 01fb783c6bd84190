package types

// ExecutionConfig is the Agent Runner's segment-loop budget configuration
// (spec.md §4.6, §6 "Execution-config defaults").
type ExecutionConfig struct {
	MaxModelStepsPerRun     int `json:"maxModelStepsPerRun"`
	MaxModelStepsPerTask    int `json:"maxModelStepsPerTask"`
	AutoContinueOnStepLimit bool `json:"autoContinueOnStepLimit"`
	MaxContinuationRuns     int `json:"maxContinuationRuns"`

	// ToolBudgets is an optional per-tool call budget for the task
	// (spec.md §4.2 step 2). A tool absent from the map is unbudgeted.
	ToolBudgets map[string]int `json:"toolBudgets,omitempty"`
}

// DefaultExecutionConfig returns the spec's system-set defaults
// (spec.md §6).
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		MaxModelStepsPerRun:     10,
		MaxModelStepsPerTask:    40,
		AutoContinueOnStepLimit: true,
		MaxContinuationRuns:     3,
	}
}

// PolicyConfig is the on-disk, hot-reloadable shape of
// {workspace}/agent.config.json: per-tool allow/deny rules plus Runner
// budget overrides (spec.md §4.1, §6).
type PolicyConfig struct {
	Permissions
	Execution   ExecutionConfig `json:"execution"`
}

// DefaultPolicyConfig returns an empty-allow-list (allow-by-default),
// spec-default-budget configuration.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Permissions: Permissions{Permissions: map[string]PermissionSpec{}},
		Execution:   DefaultExecutionConfig(),
	}
}
