package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/internal/modelexec"
	"github.com/agentcore/agentcore/internal/session"
	"github.com/agentcore/agentcore/pkg/types"
)

type recordingHooks struct {
	before int
	after  []AfterTaskInfo
}

func (h *recordingHooks) BeforeTask(sess *session.Session, meta map[string]any) error {
	h.before++
	return nil
}

func (h *recordingHooks) AfterTask(sess *session.Session, info AfterTaskInfo) error {
	h.after = append(h.after, info)
	return nil
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	return session.New(t.TempDir(), "sys", session.Options{})
}

// spec.md §8 S1 — fresh task, success.
func TestRunTaskDetailedSuccess(t *testing.T) {
	sess := newTestSession(t)
	fake := &modelexec.Fake{Results: []modelexec.GenerateResult{
		{Text: "done", FinishReason: modelexec.FinishStop, StepCount: 1},
	}}
	hooks := &recordingHooks{}
	r := New("test-model", Dependencies{
		ModelExecutor:   fake,
		ExecutionConfig: types.DefaultExecutionConfig(),
		PersistentMemoryHooks: hooks,
	})

	res, err := r.RunTaskDetailed(context.Background(), sess, "hello", RunTaskMeta{})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, "done", res.Text)
	assert.Equal(t, modelexec.FinishStop, res.FinishReason)

	snap := sess.Snapshot()
	assert.Nil(t, snap.Context.ActiveTask)
	require.NotNil(t, snap.Context.LastTask)
	assert.Equal(t, "success", snap.Context.LastTask.Status)
	assert.Equal(t, 1, hooks.before)
	require.Len(t, hooks.after, 1)
	assert.True(t, hooks.after[0].Completed)
}

// spec.md §8 S2 — auto-continue then completion.
func TestRunTaskDetailedAutoContinue(t *testing.T) {
	sess := newTestSession(t)
	fake := &modelexec.Fake{Results: []modelexec.GenerateResult{
		{Text: "partial", FinishReason: modelexec.FinishLength, StepCount: 2},
		{Text: "done", FinishReason: modelexec.FinishStop, StepCount: 1},
	}}
	cfg := types.DefaultExecutionConfig()
	cfg.MaxModelStepsPerRun = 2
	cfg.MaxContinuationRuns = 3
	cfg.MaxModelStepsPerTask = 10
	r := New("test-model", Dependencies{ModelExecutor: fake, ExecutionConfig: cfg})

	res, err := r.RunTaskDetailed(context.Background(), sess, "hello", RunTaskMeta{})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, "done", res.Text)
	assert.Equal(t, 2, fake.CallCount())
}

// spec.md §8 S4 — total-step cap precedence end to end.
func TestRunTaskDetailedStepBudgetExhausted(t *testing.T) {
	sess := newTestSession(t)
	fake := &modelexec.Fake{Results: []modelexec.GenerateResult{
		{Text: "partial", FinishReason: modelexec.FinishStop, StepCount: 40},
	}}
	cfg := types.DefaultExecutionConfig()
	cfg.MaxModelStepsPerTask = 40
	r := New("test-model", Dependencies{
		ModelExecutor:   fake,
		ExecutionConfig: cfg,
		// A checkpoint is only saved when working memory is non-empty, so
		// the segment contributes one working block.
		ExtractContextMiddleware: func(string) (map[string]any, bool) {
			return map[string]any{"memory": map[string]any{"working": []any{
				map[string]any{"id": "w1", "type": "note", "decay": 0.1, "confidence": 0.9, "round": 1, "content": "partial progress"},
			}}}, true
		},
	})

	res, err := r.RunTaskDetailed(context.Background(), sess, "hello", RunTaskMeta{})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, StopModelStepBudgetExhausted, res.StopReason)

	snap := sess.Snapshot()
	require.NotNil(t, snap.Context.TaskCheckpoint)
}

// spec.md §8 S6 — retry checkpoint round trip, driven through the Session
// calls the Runner makes on a stop; no Runner is built here.
func TestRetryCheckpointSessionRoundTrip(t *testing.T) {
	sess := newTestSession(t)
	sess.BeginTaskContext(session.BeginTaskOptions{ID: "t", Type: "task", Input: "first", Retries: 0, StartedAt: 1})
	sess.MergeExtractedContext(map[string]any{
		"memory": map[string]any{
			"working": []any{map[string]any{"id": "w1", "type": "note", "decay": 0.1, "confidence": 0.9, "round": 1, "content": "keep me"}},
		},
	}, "model")
	sess.FinishTaskContext(session.FinishParams{ID: "t", Type: "task", Status: "failed", FinishedAt: 2, Retries: 1, Attempts: 1},
		session.FinishOptions{RecordLastTask: false, PreserveCheckpoint: true})

	require.NotNil(t, sess.Context().TaskCheckpoint)
	assert.Equal(t, "t", sess.Context().TaskCheckpoint.TaskID)

	sess.BeginTaskContext(session.BeginTaskOptions{ID: "t", Type: "task", Input: "retry input", Retries: 1, StartedAt: 3})
	working := sess.Context().Memory[types.TierWorking]
	require.Len(t, working, 1)
	assert.Equal(t, "w1", working[0].ID)
	require.NotNil(t, sess.Context().ActiveTask)
	assert.Equal(t, "retry input", *sess.Context().ActiveTask)
}

func TestRunTaskDetailedModelErrorNoPartialText(t *testing.T) {
	sess := newTestSession(t)
	fake := &modelexec.Fake{Errs: []error{assertErr{}}}
	r := New("test-model", Dependencies{ModelExecutor: fake, ExecutionConfig: types.DefaultExecutionConfig()})

	res, err := r.RunTaskDetailed(context.Background(), sess, "hello", RunTaskMeta{})
	require.Error(t, err)
	assert.False(t, res.Completed)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
