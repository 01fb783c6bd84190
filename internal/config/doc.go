// Package config loads the Policy & Guard / Agent Runner configuration:
// per-tool allow/deny rules and execution-budget overrides, read from a
// global user-level file and a per-workspace agent.config.json, merged
// and overridden by environment variables (spec.md §4.1, §6).
//
// # Layering
//
// Load(workspace) merges, in priority order:
//  1. ~/.config/agentcore/agent.config.json (global)
//  2. {workspace}/agent.config.json (workspace)
//  3. AGENTCORE_* environment variables
//
// A missing file at any layer is not an error; Load always returns a
// usable PolicyConfig, defaulting to allow-by-default permissions and the
// spec's execution-config defaults (maxModelStepsPerRun=10,
// maxModelStepsPerTask=40, autoContinueOnStepLimit=true,
// maxContinuationRuns=3).
//
// # Format
//
// Config files are JSONC: // and /* */ comments are stripped before
// parsing.
//
// # Hot reload
//
// Watcher wraps fsnotify to re-Load the effective config whenever either
// file changes on disk, so a long-running session observes edits to its
// allow/deny rules without restarting.
//
// agent.config.json is itself one of the paths internal/policy always
// hard-blocks from every tool (spec.md GLOSSARY "sensitive workspace
// path") — only this package, running host-side outside the tool
// sandbox, ever reads it.
package config
