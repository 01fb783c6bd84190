package runner

import (
	"context"

	"github.com/agentcore/agentcore/internal/memctx"
	"github.com/agentcore/agentcore/internal/modelexec"
	"github.com/agentcore/agentcore/internal/session"
	"github.com/agentcore/agentcore/pkg/types"
)

// streamSegmentLoop mirrors segmentLoop's state machine (spec.md §4.6
// steps 2-5) but forwards each segment's text deltas to out as they
// arrive instead of returning the whole segment's text at once.
func (r *Runner) streamSegmentLoop(ctx context.Context, sess *session.Session, meta RunTaskMeta, input string, out chan<- string) (Result, error) {
	totalModelSteps := 0
	continuationRuns := 0
	lastText := ""
	first := true

	for {
		select {
		case <-ctx.Done():
			sess.FinishTaskContext(session.FinishParams{
				ID: meta.ID, Type: meta.Type, Status: "cancelled", FinishedAt: nowMillis(),
				Retries: 0, Attempts: continuationRuns + 1,
			}, session.FinishOptions{RecordLastTask: true, PreserveCheckpoint: len(sess.Context().Memory[types.TierWorking]) > 0})
			return Result{Completed: false, Text: lastText}, ctx.Err()
		default:
		}

		if first {
			sess.PrepareUserTurn(input, session.PrepareOptions{AdvanceRound: true})
			first = false
		} else {
			sess.PrepareInternalContinuationTurn(defaultContinuationPrompt, session.PrepareOptions{AdvanceRound: false})
		}

		snapshot := sess.Snapshot()
		req := modelexec.GenerateRequest{
			Model:    r.model,
			Messages: snapshot.Messages,
			Tools:    r.deps.ToolNames,
			MaxSteps: r.deps.ExecutionConfig.MaxModelStepsPerRun,
		}

		handle, err := r.deps.ModelExecutor.Stream(ctx, req)
		if err != nil {
			return r.abortSegment(sess, meta, continuationRuns, lastText, err)
		}

		for chunk := range handle.TextStream {
			select {
			case out <- chunk:
			case <-ctx.Done():
			}
		}

		result, err := handle.FinalResult(ctx)
		if err != nil {
			return r.abortSegment(sess, meta, continuationRuns, lastText, err)
		}

		lastText = result.Text
		totalModelSteps += result.StepCount
		if result.FinishReason == modelexec.FinishLength {
			continuationRuns++
		}

		if r.deps.ExtractContextMiddleware != nil {
			if patch, ok := r.deps.ExtractContextMiddleware(result.Text); ok {
				sess.MergeExtractedContext(patch, memctx.SourceModel)
			}
		}

		outcome := ClassifySegmentOutcome(ClassifyInput{
			FinishReason:     result.FinishReason,
			SegmentStepCount: result.StepCount,
			Config:           r.deps.ExecutionConfig,
			TotalModelSteps:  totalModelSteps,
			ContinuationRuns: continuationRuns,
		})

		switch outcome.Kind {
		case OutcomeAutoContinue:
			continue
		case OutcomeCompleted:
			sess.FinishTaskContext(session.FinishParams{
				ID: meta.ID, Type: meta.Type, Status: "success", FinishedAt: nowMillis(),
				Retries: 0, Attempts: continuationRuns + 1,
			}, session.FinishOptions{RecordLastTask: true, PreserveCheckpoint: false})
			return Result{Completed: true, Text: result.Text, FinishReason: result.FinishReason}, nil
		case OutcomeStop:
			sess.FinishTaskContext(session.FinishParams{
				ID: meta.ID, Type: meta.Type, Status: "failed", FinishedAt: nowMillis(),
				Retries: 0, Attempts: continuationRuns + 1,
			}, session.FinishOptions{RecordLastTask: false, PreserveCheckpoint: true})
			return Result{Completed: false, Text: result.Text, StopReason: outcome.StopReason}, nil
		}
	}
}

func (r *Runner) abortSegment(sess *session.Session, meta RunTaskMeta, continuationRuns int, lastText string, err error) (Result, error) {
	status := "failed"
	sess.FinishTaskContext(session.FinishParams{
		ID: meta.ID, Type: meta.Type, Status: status, FinishedAt: nowMillis(),
		Retries: 0, Attempts: continuationRuns + 1,
	}, session.FinishOptions{RecordLastTask: true, PreserveCheckpoint: false})
	if lastText != "" {
		return Result{Completed: false, Text: lastText}, nil
	}
	return Result{Completed: false, Text: err.Error()}, err
}
