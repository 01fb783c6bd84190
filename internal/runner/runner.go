// Package runner implements the Agent Runner (spec.md §4.6): the segment
// loop over model calls, outcome classification, continuation/abort
// control, and the persistent-memory hook brackets around a task.
// Grounded on the teacher's `internal/session/loop.go` (runLoop: retry
// backoff, finish-reason switch, tool-call continuation) and
// `internal/session/processor.go` (per-session serialized Process/Abort
// entry points), generalized from the teacher's eino-bound concrete
// model/tool plumbing to the spec's own ModelExecutor/Session contracts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentcore/agentcore/internal/logging"
	"github.com/agentcore/agentcore/internal/memctx"
	"github.com/agentcore/agentcore/internal/modelexec"
	"github.com/agentcore/agentcore/internal/session"
	"github.com/agentcore/agentcore/pkg/types"
)

// ExtractContextMiddleware pulls a context_patch object (if any) out of
// one segment's raw model text, for the Runner to merge into the
// session via MergeExtractedContext (spec.md §6 "createExtractContext
// Middleware()"). Returning ok=false means no patch was present.
type ExtractContextMiddleware func(segmentText string) (patch map[string]any, ok bool)

// Dependencies bundles the Runner's constructor-injected collaborators
// (spec.md §6 "Constructor dependency injection").
type Dependencies struct {
	ModelExecutor             modelexec.Executor
	ToolNames                 []string // bound tool names advertised to the model for this task
	ExtractContextMiddleware  ExtractContextMiddleware
	ExecutionConfig           types.ExecutionConfig
	PersistentMemoryHooks     PersistentMemoryHooks
}

// Runner drives Session.runTask* (spec.md §4.6).
type Runner struct {
	model string
	deps  Dependencies
}

// New constructs a Runner bound to an opaque model identifier and its
// dependencies.
func New(model string, deps Dependencies) *Runner {
	if deps.PersistentMemoryHooks == nil {
		deps.PersistentMemoryHooks = NoopHooks{}
	}
	return &Runner{model: model, deps: deps}
}

// Result is runTaskDetailed's return shape (spec.md §6).
type Result struct {
	Completed    bool
	Text         string
	FinishReason modelexec.FinishReason
	StopReason   string
}

// RunTaskMeta optionally names the task; a fresh ULID/type is generated
// when absent.
type RunTaskMeta struct {
	ID   string
	Type string
}

const defaultContinuationPrompt = "Continue the previous response; it was cut off by the output length limit."

func (m RunTaskMeta) orDefaults() RunTaskMeta {
	if m.ID == "" {
		m.ID = session.NewULID()
	}
	if m.Type == "" {
		m.Type = "task"
	}
	return m
}

// RunTaskDetailed runs input as a bounded sequence of model steps over
// sess, returning once the task completes or stops (spec.md §4.6
// "runTaskDetailed(session, input, meta?) lifecycle").
func (r *Runner) RunTaskDetailed(ctx context.Context, sess *session.Session, input string, meta RunTaskMeta) (Result, error) {
	meta = meta.orDefaults()
	metaMap := map[string]any{"id": meta.ID, "type": meta.Type}

	safeBeforeTask(r.deps.PersistentMemoryHooks, sess, metaMap)

	startedAt := nowMillis()
	sess.BeginTaskContext(session.BeginTaskOptions{
		ID: meta.ID, Type: meta.Type, Input: input, Retries: 0, StartedAt: startedAt,
	})

	res, runErr := r.segmentLoop(ctx, sess, meta, input, "detailed")

	safeAfterTask(r.deps.PersistentMemoryHooks, sess, AfterTaskInfo{
		Completed:          res.Completed,
		Mode:               "detailed",
		FinishReasonOrStop: coalesceReason(res),
	})

	return res, runErr
}

func coalesceReason(res Result) string {
	if res.StopReason != "" {
		return res.StopReason
	}
	return string(res.FinishReason)
}

// segmentLoop is the segment state machine behind RunTaskDetailed
// (spec.md §4.6 steps 2-5). RunTaskStream does not call it; it runs its
// own copy, streamSegmentLoop.
func (r *Runner) segmentLoop(ctx context.Context, sess *session.Session, meta RunTaskMeta, input, mode string) (Result, error) {
	totalModelSteps := 0
	continuationRuns := 0
	lastText := ""
	first := true
	segmentIndex := 0

	runnerLog := logging.Component("runner")

	for {
		select {
		case <-ctx.Done():
			runnerLog.Info().
				Str("taskId", meta.ID).Str("taskType", meta.Type).
				Int("segment", segmentIndex).Int("round", sess.Context().Runtime.Round).
				Str("stopReason", "cancelled").Msg("segment loop stopped")
			sess.FinishTaskContext(session.FinishParams{
				ID: meta.ID, Type: meta.Type, Status: "cancelled", FinishedAt: nowMillis(),
				Retries: 0, Attempts: continuationRuns + 1,
			}, session.FinishOptions{RecordLastTask: true, PreserveCheckpoint: len(sess.Context().Memory[types.TierWorking]) > 0})
			return Result{Completed: false, Text: lastText}, ctx.Err()
		default:
		}

		runnerLog.Debug().
			Str("taskId", meta.ID).Str("taskType", meta.Type).
			Int("segment", segmentIndex).Int("round", sess.Context().Runtime.Round).
			Msg("segment start")

		var debug *types.ProjectionDebug
		if first {
			debug = sess.PrepareUserTurn(input, session.PrepareOptions{AdvanceRound: true})
			first = false
		} else {
			debug = sess.PrepareInternalContinuationTurn(defaultContinuationPrompt, session.PrepareOptions{AdvanceRound: false})
		}
		_ = debug

		snapshot := sess.Snapshot()
		req := modelexec.GenerateRequest{
			Model:    r.model,
			Messages: snapshot.Messages,
			Tools:    r.deps.ToolNames,
			MaxSteps: r.deps.ExecutionConfig.MaxModelStepsPerRun,
		}

		result, err := r.generateWithRetry(ctx, req)
		if err != nil {
			runnerLog.Warn().
				Str("taskId", meta.ID).Str("taskType", meta.Type).
				Int("segment", segmentIndex).Int("round", sess.Context().Runtime.Round).
				Str("stopReason", "generate_error").Err(err).Msg("segment loop stopped")
			if lastText != "" {
				sess.FinishTaskContext(session.FinishParams{
					ID: meta.ID, Type: meta.Type, Status: "failed", FinishedAt: nowMillis(),
					Retries: 0, Attempts: continuationRuns + 1,
				}, session.FinishOptions{RecordLastTask: true, PreserveCheckpoint: false})
				return Result{Completed: false, Text: lastText}, nil
			}
			sess.FinishTaskContext(session.FinishParams{
				ID: meta.ID, Type: meta.Type, Status: "failed", FinishedAt: nowMillis(),
				Retries: 0, Attempts: continuationRuns + 1,
			}, session.FinishOptions{RecordLastTask: true, PreserveCheckpoint: false})
			return Result{Completed: false, Text: err.Error()}, err
		}
		segmentIndex++

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
			runnerLog.Info().
				Str("taskId", meta.ID).Str("taskType", meta.Type).
				Int("segment", segmentIndex).Int("round", sess.Context().Runtime.Round).
				Str("stopReason", string(result.FinishReason)).Msg("segment loop completed")
			sess.FinishTaskContext(session.FinishParams{
				ID: meta.ID, Type: meta.Type, Status: "success", FinishedAt: nowMillis(),
				Retries: 0, Attempts: continuationRuns + 1,
			}, session.FinishOptions{RecordLastTask: true, PreserveCheckpoint: false})
			return Result{Completed: true, Text: result.Text, FinishReason: result.FinishReason}, nil
		case OutcomeStop:
			runnerLog.Info().
				Str("taskId", meta.ID).Str("taskType", meta.Type).
				Int("segment", segmentIndex).Int("round", sess.Context().Runtime.Round).
				Str("stopReason", outcome.StopReason).Msg("segment loop stopped")
			sess.FinishTaskContext(session.FinishParams{
				ID: meta.ID, Type: meta.Type, Status: "failed", FinishedAt: nowMillis(),
				Retries: 0, Attempts: continuationRuns + 1,
			}, session.FinishOptions{RecordLastTask: false, PreserveCheckpoint: true})
			return Result{Completed: false, Text: result.Text, StopReason: outcome.StopReason}, nil
		default:
			return Result{}, fmt.Errorf("runner: unknown outcome kind %q", outcome.Kind)
		}
	}
}

// generateWithRetry wraps modelExecutor.Generate with exponential backoff
// and jitter for errors the executor marks retryable
// (modelexec.RetryableError); any other error is terminal and surfaces
// immediately (SPEC_FULL.md §B "cenkalti/backoff/v4").
func (r *Runner) generateWithRetry(ctx context.Context, req modelexec.GenerateRequest) (modelexec.GenerateResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	b.RandomizationFactor = 0.5
	bo := backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)

	var result modelexec.GenerateResult
	operation := func() error {
		res, err := r.deps.ModelExecutor.Generate(ctx, req)
		if err == nil {
			result = res
			return nil
		}
		var retryable *modelexec.RetryableError
		if errors.As(err, &retryable) {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, bo); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return modelexec.GenerateResult{}, perm.Err
		}
		return modelexec.GenerateResult{}, err
	}
	return result, nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }
