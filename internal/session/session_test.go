package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/internal/memctx"
	"github.com/agentcore/agentcore/pkg/types"
)

func TestNewSeedsSystemMessageAndRoundOne(t *testing.T) {
	s := New("/ws", "you are an agent", Options{})
	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, types.RoleSystem, snap.Messages[0].Role)
	assert.Equal(t, "you are an agent", snap.Messages[0].Content)
	assert.Equal(t, 1, snap.Context.Runtime.Round)
}

func TestMergeExtractedContextGoesThroughSanitizeMergeCompact(t *testing.T) {
	s := New("/ws", "sys", Options{})
	s.MergeExtractedContext(map[string]any{
		"memory": map[string]any{
			"working": []any{
				map[string]any{"id": "w1", "type": "note", "decay": 0.1, "confidence": 0.9, "round": 1, "content": "hello"},
			},
		},
	}, memctx.SourceModel)

	working := s.Context().Memory[types.TierWorking]
	require.Len(t, working, 1)
	assert.Equal(t, "w1", working[0].ID)
}

func TestMergeExtractedContextCannotSetRuntimeOrVersion(t *testing.T) {
	s := New("/ws", "sys", Options{})
	before := s.Context().Runtime
	s.MergeExtractedContext(map[string]any{"runtime": map[string]any{"round": 999}}, memctx.SourceModel)
	assert.Equal(t, before, s.Context().Runtime)
}

// spec.md §8 S6 — retry checkpoint restore round trip, exercised directly
// through the Session (the Runner-level variant lives in internal/runner).
func TestBeginTaskContextRestoresCheckpointOnMatchingRetry(t *testing.T) {
	s := New("/ws", "sys", Options{})
	s.BeginTaskContext(BeginTaskOptions{ID: "t1", Type: "task", Input: "go", Retries: 0, StartedAt: 1})
	s.MergeExtractedContext(map[string]any{
		"memory": map[string]any{"working": []any{
			map[string]any{"id": "w1", "type": "note", "decay": 0.1, "confidence": 0.9, "round": 1, "content": "progress"},
		}},
	}, memctx.SourceModel)
	s.FinishTaskContext(FinishParams{ID: "t1", Type: "task", Status: "failed", FinishedAt: 2, Retries: 1, Attempts: 1},
		FinishOptions{RecordLastTask: false, PreserveCheckpoint: true})

	require.NotNil(t, s.Context().TaskCheckpoint)
	assert.Empty(t, s.Context().Memory[types.TierWorking])

	s.BeginTaskContext(BeginTaskOptions{ID: "t1", Type: "task", Input: "go again", Retries: 1, StartedAt: 3})
	working := s.Context().Memory[types.TierWorking]
	require.Len(t, working, 1)
	assert.Equal(t, "w1", working[0].ID)
	require.NotNil(t, s.Context().ActiveTaskMeta)
	assert.Equal(t, 2, s.Context().ActiveTaskMeta.Attempt)
}

func TestBeginTaskContextIgnoresCheckpointForDifferentTaskID(t *testing.T) {
	s := New("/ws", "sys", Options{})
	s.BeginTaskContext(BeginTaskOptions{ID: "t1", Type: "task", Input: "a", Retries: 0, StartedAt: 1})
	s.MergeExtractedContext(map[string]any{
		"memory": map[string]any{"working": []any{
			map[string]any{"id": "w1", "type": "note", "decay": 0.1, "confidence": 0.9, "round": 1, "content": "progress"},
		}},
	}, memctx.SourceModel)
	s.FinishTaskContext(FinishParams{ID: "t1", Type: "task", Status: "failed", FinishedAt: 2, Retries: 1, Attempts: 1},
		FinishOptions{PreserveCheckpoint: true})

	// A different task id beginning, even with retries>0, must not inherit
	// t1's checkpoint and must discard it as stale.
	s.BeginTaskContext(BeginTaskOptions{ID: "t2", Type: "task", Input: "b", Retries: 1, StartedAt: 3})
	assert.Empty(t, s.Context().Memory[types.TierWorking])
	assert.Nil(t, s.Context().TaskCheckpoint)
}

func TestFinishTaskContextRecordsLastTaskAndClearsActive(t *testing.T) {
	s := New("/ws", "sys", Options{})
	s.BeginTaskContext(BeginTaskOptions{ID: "t1", Type: "task", Input: "a", StartedAt: 1})
	s.FinishTaskContext(FinishParams{ID: "t1", Type: "task", Status: "success", FinishedAt: 5}, DefaultFinishOptions())

	assert.Nil(t, s.Context().ActiveTask)
	assert.Nil(t, s.Context().ActiveTaskMeta)
	assert.Nil(t, s.Context().TaskCheckpoint)
	require.NotNil(t, s.Context().LastTask)
	assert.Equal(t, "success", s.Context().LastTask.Status)
}

func TestPrepareUserTurnUpsertsInjectedContextAndAppendsUser(t *testing.T) {
	s := New("/ws", "sys", Options{})
	s.PrepareUserTurn("do the thing", PrepareOptions{AdvanceRound: true})

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, types.RoleSystem, snap.Messages[0].Role)
	assert.Equal(t, types.RoleSystem, snap.Messages[1].Role)
	assert.Equal(t, "sys", snap.Messages[1].Content)
	assert.Equal(t, types.RoleUser, snap.Messages[2].Role)
	assert.Equal(t, "do the thing", snap.Messages[2].Content)
	assert.Equal(t, 2, snap.Context.Runtime.Round)
}

func TestPrepareInternalContinuationTurnDoesNotAdvanceRoundByDefault(t *testing.T) {
	s := New("/ws", "sys", Options{})
	s.PrepareUserTurn("first", PrepareOptions{AdvanceRound: true})
	roundAfterFirst := s.Context().Runtime.Round

	s.PrepareInternalContinuationTurn("continue", PrepareOptions{})
	assert.Equal(t, roundAfterFirst, s.Context().Runtime.Round)
}

func TestReplaceLatestUserTurn(t *testing.T) {
	s := New("/ws", "sys", Options{})
	s.PrepareUserTurn("first draft", PrepareOptions{AdvanceRound: true})
	ok := s.ReplaceLatestUserTurn("revised draft")
	assert.True(t, ok)

	snap := s.Snapshot()
	last := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, "revised draft", last.Content)
}

func TestInjectedLiteStripsMemoryFromWirePayload(t *testing.T) {
	lite := New("/ws", "sys", Options{InjectedLite: true})
	lite.MergeExtractedContext(map[string]any{
		"memory": map[string]any{"core": []any{
			map[string]any{"id": "c1", "type": "note", "decay": 0.1, "confidence": 0.9, "round": 1, "content": "important"},
		}},
	}, memctx.SourceModel)
	lite.PrepareUserTurn("go", PrepareOptions{AdvanceRound: true})

	snap := lite.Snapshot()
	injected := snap.Messages[0].Content
	assert.NotContains(t, injected, "important")
}

func TestSnapshotDeepCopiesContext(t *testing.T) {
	s := New("/ws", "sys", Options{})
	snap := s.Snapshot()
	snap.Context.Runtime.Round = 999
	assert.NotEqual(t, 999, s.Context().Runtime.Round)
}
