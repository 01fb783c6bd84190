package runner

import (
	"context"

	"github.com/agentcore/agentcore/internal/session"
)

// Stream is runTaskStream's return shape (spec.md §6): a text-delta
// channel plus a Finalize call yielding the same shape RunTaskDetailed
// returns, once the stream is fully drained.
type Stream struct {
	TextStream <-chan string
	Finalize   func() (Result, error)
}

// RunTaskStream is identical in lifecycle to RunTaskDetailed but yields
// text deltas as they arrive; afterTask fires once the stream is fully
// consumed or errors (spec.md §4.6 "runTaskStream").
//
// The segment loop itself is not re-implemented here: streaming only
// needs to surface the *current* segment's deltas to the caller, so this
// delegates each segment's model call to modelExecutor.Stream and folds
// its FinalResult back into the same classify/continue/stop state
// machine segmentLoop uses — duplicated rather than shared because the
// per-segment delta fan-out has no equivalent in the non-streaming path.
func (r *Runner) RunTaskStream(ctx context.Context, sess *session.Session, input string, meta RunTaskMeta) *Stream {
	meta = meta.orDefaults()
	metaMap := map[string]any{"id": meta.ID, "type": meta.Type}
	out := make(chan string)

	finalCh := make(chan Result, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)

		safeBeforeTask(r.deps.PersistentMemoryHooks, sess, metaMap)

		startedAt := nowMillis()
		sess.BeginTaskContext(session.BeginTaskOptions{
			ID: meta.ID, Type: meta.Type, Input: input, Retries: 0, StartedAt: startedAt,
		})

		res, runErr := r.streamSegmentLoop(ctx, sess, meta, input, out)

		safeAfterTask(r.deps.PersistentMemoryHooks, sess, AfterTaskInfo{
			Completed:          res.Completed,
			Mode:               "stream",
			FinishReasonOrStop: coalesceReason(res),
		})

		finalCh <- res
		if runErr != nil {
			errCh <- runErr
		} else {
			errCh <- nil
		}
	}()

	return &Stream{
		TextStream: out,
		Finalize: func() (Result, error) {
			res := <-finalCh
			err := <-errCh
			return res, err
		},
	}
}
