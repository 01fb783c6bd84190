// Package memctx implements the Memory/Context component: sanitizing
// incoming context patches from untrusted model/tool output, merging them
// against the session's current AgentContext under the memory policy,
// compacting each tier, and projecting the result into the wire-visible
// ModelContextV2.
//
// All functions here are pure: none mutate their inputs (spec.md §5,
// "Memory policies are pure"). Session is the only place an AgentContext
// is actually replaced.
//
// The compaction shape is grounded on the teacher's internal/session
// compact.go (compaction runs as a discrete pipeline stage before
// anything is handed back to the model) even though the algorithm itself
// (deterministic quality/decay/TTL ranking, not LLM summarization) is the
// spec's own.
package memctx
