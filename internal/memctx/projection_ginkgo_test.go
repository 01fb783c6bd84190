package memctx_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/agentcore/agentcore/internal/memctx"
	"github.com/agentcore/agentcore/pkg/types"
)

// Grounded on spec.md §8 items 4, 5, 6, 7 — expressed as "for all contexts"
// property specs rather than flat table tests, matching the teacher's use
// of ginkgo/gomega alongside testify for different subsystems
// (SPEC_FULL.md §A.4).

func contextAtRound(round int) *types.AgentContext {
	ctx := types.NewAgentContext("/ws", "now", 0)
	ctx.Runtime.Round = round
	return ctx
}

var _ = Describe("buildInjectedContextProjection", func() {
	var raw *types.AgentContext

	BeforeEach(func() {
		raw = contextAtRound(6)
		raw.TaskCheckpoint = &types.TaskCheckpoint{TaskID: "t1"}
		raw.LastTask = &types.LastTask{ID: "t1"}
	})

	It("never carries task_checkpoint or last_task forward", func() {
		injected, _ := memctx.BuildInjectedContextProjection(raw)
		Expect(injected.TaskCheckpoint).To(BeNil())
		Expect(injected.LastTask).To(BeNil())
	})

	It("drops every terminal-status working block", func() {
		raw.Memory[types.TierWorking] = []types.MemoryBlock{
			{ID: "a", Type: "t", Content: "x", Decay: 0.1, Confidence: 0.9, Round: 6, Status: types.StatusDone},
			{ID: "b", Type: "t", Content: "x", Decay: 0.1, Confidence: 0.9, Round: 6, Status: types.StatusFailed},
			{ID: "c", Type: "t", Content: "x", Decay: 0.1, Confidence: 0.9, Round: 6, Status: types.StatusCancelled},
			{ID: "d", Type: "t", Content: "x", Decay: 0.1, Confidence: 0.9, Round: 6, Status: types.StatusOpen},
		}
		injected, debug := memctx.BuildInjectedContextProjection(raw)
		Expect(injected.Memory[types.TierWorking]).To(HaveLen(1))
		Expect(injected.Memory[types.TierWorking][0].ID).To(Equal("d"))
		Expect(debug.DroppedByReason[types.DropWorkingStatusTerminal]).To(Equal(3))
	})

	It("caps every tier at its policy MaxItems", func() {
		for _, tier := range []types.Tier{types.TierCore, types.TierWorking, types.TierEphemeral} {
			policy := types.TierPolicies[tier]
			blocks := make([]types.MemoryBlock, 0, policy.MaxItems+10)
			for i := 0; i < policy.MaxItems+10; i++ {
				blocks = append(blocks, types.MemoryBlock{
					ID: tierBlockID(tier, i), Type: "t", Content: "x",
					Decay: 0.05, Confidence: 0.95, Round: raw.Runtime.Round,
				})
			}
			raw.Memory[tier] = blocks
		}
		injected, _ := memctx.BuildInjectedContextProjection(raw)
		for _, tier := range []types.Tier{types.TierCore, types.TierWorking, types.TierEphemeral} {
			Expect(len(injected.Memory[tier])).To(BeNumerically("<=", types.TierPolicies[tier].MaxItems))
		}
	})

	It("clamps any block round to the current runtime round", func() {
		raw.Memory[types.TierCore] = []types.MemoryBlock{
			{ID: "future", Type: "t", Content: "x", Decay: 0.1, Confidence: 0.9, Round: 999},
		}
		injected, _ := memctx.BuildInjectedContextProjection(raw)
		Expect(injected.Memory[types.TierCore]).NotTo(BeEmpty())
		Expect(injected.Memory[types.TierCore][0].Round).To(Equal(raw.Runtime.Round))
	})
})

var _ = Describe("sanitizeCursor", func() {
	It("requires a positive targetId exactly when next demands one", func() {
		for next, needsTarget := range map[types.CursorNext]bool{
			types.NextNone:          false,
			types.NextTodoList:      false,
			types.NextTodoAdd:       false,
			types.NextTodoClearDone: false,
			types.NextTodoComplete:  true,
			types.NextTodoReopen:    true,
			types.NextTodoUpdate:    true,
			types.NextTodoRemove:    true,
		} {
			withTarget := map[string]any{"v": 1, "phase": "doing", "next": string(next), "targetId": 1}
			withoutTarget := map[string]any{"v": 1, "phase": "doing", "next": string(next)}

			// Exported only via SanitizeIncomingContextPatch's todo path.
			ctx := contextAtRound(1)
			patchWith := memctx.SanitizeIncomingContextPatch(map[string]any{"todo": map[string]any{"cursor": withTarget}}, ctx, memctx.SanitizeOptions{})
			patchWithout := memctx.SanitizeIncomingContextPatch(map[string]any{"todo": map[string]any{"cursor": withoutTarget}}, ctx, memctx.SanitizeOptions{})

			if needsTarget {
				Expect(patchWith.Todo).NotTo(BeNil(), string(next))
				Expect(patchWithout.Todo).To(BeNil(), string(next))
			} else {
				Expect(patchWith.Todo).To(BeNil(), string(next))
				Expect(patchWithout.Todo).NotTo(BeNil(), string(next))
			}
		}
	})
})

func tierBlockID(tier types.Tier, i int) string {
	return string(tier) + "-" + string(rune('A'+i%26)) + string(rune('0'+i/26))
}
