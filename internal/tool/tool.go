// Package tool implements the Tool Registry (spec.md §4.2): a catalog of
// typed tools behind a uniform execute contract, budget enforcement, and
// telemetry wrapping. Every builtin tool is a Factory closing over a
// *types.ToolExecutionContext; Execute never panics or returns a Go error
// for an expected failure mode — it returns a plain record with an
// "error" key instead (spec.md §4.2: "Tools never throw for normal
// failure modes").
package tool

import (
	"encoding/json"
)

// CallMetadata carries the per-invocation identifiers the uniform wrapper
// needs (spec.md §4.2 step 1). SessionID/TaskID/Round/SegmentIndex are
// optional context a caller threading a tool call through a running task
// can set so structured logs can correlate a tool call back to the
// segment that issued it (SPEC_FULL.md §A.1).
type CallMetadata struct {
	CallID       string
	SessionID    string
	TaskID       string
	Round        int
	SegmentIndex int
}

// Definition is one entry in the catalog: a short description, a
// structured input schema, and the execute contract.
type Definition struct {
	Name        string
	Description string
	// Schema is the JSON Schema for the tool's input, used by callers that
	// need to advertise it to a model; Strict callers reject unknown keys
	// before Execute ever sees them (spec.md §4.2).
	Schema json.RawMessage
	Strict bool
	// Execute runs the tool. input has already been schema-validated by
	// the caller assembling the call; Execute itself still defends against
	// missing/malformed fields as a second layer, returning {"error":...}
	// rather than a Go error for any expected failure.
	Execute func(input map[string]any, meta CallMetadata) map[string]any
}

// errorField builds the standard validation-failure record (spec.md §7).
func errorField(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func errorFieldDetail(msg, detail string) map[string]any {
	return map[string]any{"error": msg, "detail": detail}
}

func stringArg(input map[string]any, key string) (string, bool) {
	v, ok := input[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func boolArg(input map[string]any, key string, def bool) bool {
	v, ok := input[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func intArg(input map[string]any, key string, def int) int {
	v, ok := input[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return def
}

func stringSliceArg(input map[string]any, key string) ([]string, bool) {
	v, ok := input[key]
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, true
		}
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
