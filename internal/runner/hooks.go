package runner

import "github.com/agentcore/agentcore/internal/session"

// AfterTaskInfo is passed to PersistentMemoryHooks.AfterTask on every exit
// path, including when BeforeTask itself failed (spec.md §4.6 step 6).
type AfterTaskInfo struct {
	Completed bool
	Mode      string // "detailed" | "stream"
	// FinishReasonOrStop holds whichever of finishReason/stopReason
	// applies to this exit, matching spec.md §8 scenario S2's
	// "{completed:true, mode:'detailed', finishReason:'stop'}" shape.
	FinishReasonOrStop string
}

// PersistentMemoryHooks brackets a whole task (spec.md §4.6 step 1/6,
// §4.5 "persistent-memory hooks fire around the whole task"). Hook
// failures never abort the task; the Runner swallows them.
type PersistentMemoryHooks interface {
	BeforeTask(sess *session.Session, meta map[string]any) error
	AfterTask(sess *session.Session, info AfterTaskInfo) error
}

// NoopHooks is the zero-value-safe default: both hooks are no-ops. Real
// persistent-memory coordination (spec.md §6 ToolExecutionContext's
// persistentMemoryCoordinator seam) is an external collaborator; nothing
// in the core requires a concrete implementation.
type NoopHooks struct{}

// BeforeTask implements PersistentMemoryHooks.
func (NoopHooks) BeforeTask(sess *session.Session, meta map[string]any) error { return nil }

// AfterTask implements PersistentMemoryHooks.
func (NoopHooks) AfterTask(sess *session.Session, info AfterTaskInfo) error { return nil }

// safeBeforeTask and safeAfterTask swallow hook errors per spec.md §4.6
// steps 1/6 ("swallow errors").
func safeBeforeTask(hooks PersistentMemoryHooks, sess *session.Session, meta map[string]any) {
	if hooks == nil {
		return
	}
	defer func() { recover() }()
	_ = hooks.BeforeTask(sess, meta)
}

func safeAfterTask(hooks PersistentMemoryHooks, sess *session.Session, info AfterTaskInfo) {
	if hooks == nil {
		return
	}
	defer func() { recover() }()
	_ = hooks.AfterTask(sess, info)
}
