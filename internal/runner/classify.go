package runner

import (
	"github.com/agentcore/agentcore/internal/modelexec"
	"github.com/agentcore/agentcore/pkg/types"
)

// OutcomeKind is the closed vocabulary ClassifySegmentOutcome returns
// (spec.md §4.6 step 4).
type OutcomeKind string

const (
	OutcomeAutoContinue OutcomeKind = "auto_continue"
	OutcomeStop         OutcomeKind = "stop"
	OutcomeCompleted    OutcomeKind = "completed"
)

// Stop reasons (spec.md §4.6 step 4, §7).
const (
	StopModelStepBudgetExhausted = "model_step_budget_exhausted"
	StopContinuationLimitReached = "continuation_limit_reached"
	StopStepLimitSegmentContinue = "step_limit_segment_continue"
)

// ClassifyInput bundles the inputs ClassifySegmentOutcome needs
// (spec.md §4.6 step 4 "classifySegmentOutcome({finishReason,
// segmentStepCount, config, totalModelSteps, continuationRuns})").
type ClassifyInput struct {
	FinishReason     modelexec.FinishReason
	SegmentStepCount int
	Config           types.ExecutionConfig
	TotalModelSteps  int
	ContinuationRuns int
}

// Outcome is the classifier's verdict.
type Outcome struct {
	Kind       OutcomeKind
	StopReason string
}

// ClassifySegmentOutcome implements spec.md §4.6 step 4's priority-ordered
// decision table, also exercised directly as the property tests of
// spec.md §8 item 9 and scenarios S3/S4.
func ClassifySegmentOutcome(in ClassifyInput) Outcome {
	if in.TotalModelSteps >= in.Config.MaxModelStepsPerTask {
		return Outcome{Kind: OutcomeStop, StopReason: StopModelStepBudgetExhausted}
	}

	atStepLimit := in.FinishReason == modelexec.FinishLength && in.SegmentStepCount >= in.Config.MaxModelStepsPerRun
	if atStepLimit {
		if in.Config.AutoContinueOnStepLimit && in.ContinuationRuns < in.Config.MaxContinuationRuns {
			return Outcome{Kind: OutcomeAutoContinue}
		}
		if in.Config.AutoContinueOnStepLimit {
			return Outcome{Kind: OutcomeStop, StopReason: StopContinuationLimitReached}
		}
		return Outcome{Kind: OutcomeStop, StopReason: StopStepLimitSegmentContinue}
	}

	return Outcome{Kind: OutcomeCompleted}
}
