// Package modelexec defines the ModelExecutor contract (spec.md §6): the
// seam between the Agent Runner and a concrete LLM provider SDK. The
// provider wiring itself is an explicit Non-goal (spec.md §1) — this
// package only carries the interface plus a deterministic in-memory fake
// used by the Runner's own tests, grounded on the teacher's
// `internal/provider` call shape (request in, {text,finishReason} out)
// without any of the teacher's concrete Anthropic/OpenAI client code.
package modelexec

import (
	"context"

	"github.com/agentcore/agentcore/pkg/types"
)

// FinishReason is the closed-ish vocabulary a model call reports back.
// "length" is the one value the Runner's classifier treats specially
// (spec.md §4.6); any other string is accepted and simply means
// "completed this segment".
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
	FinishError     FinishReason = "error"
)

// GenerateRequest bundles one segment's inputs (spec.md §6).
type GenerateRequest struct {
	Model    string
	Messages []types.Message
	Tools    []string // tool names bound from the registry, advertised to the model
	MaxSteps int
}

// GenerateResult is a completed segment's outcome (spec.md §6).
type GenerateResult struct {
	Text       string
	FinishReason FinishReason
	StepCount    int
}

// StreamHandle exposes a finite async sequence of text deltas plus a tail
// promise yielding the final outcome (spec.md §9 "Coroutines and
// streams"). TextStream is closed (no more values) once FinalResult is
// ready to be read without blocking further.
type StreamHandle struct {
	TextStream  <-chan string
	FinalResult func(ctx context.Context) (GenerateResult, error)
}

// Executor is the Runner's only view of the model layer (spec.md §6
// "ModelExecutor contract"). Implementations may be asynchronous
// internally; from the Runner's perspective both methods are synchronous
// calls that may suspend (spec.md §5).
type Executor interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	Stream(ctx context.Context, req GenerateRequest) (StreamHandle, error)
}

// RetryableError is the narrow seam the Runner's backoff wrapper looks
// for: an error a transient-fault retry policy should act on, distinct
// from a terminal provider error that should abort the task immediately
// (SPEC_FULL.md §B "cenkalti/backoff/v4").
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryable wraps err as a RetryableError.
func NewRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}
