package tool

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentcore/agentcore/internal/event"
	"github.com/agentcore/agentcore/internal/logging"
	"github.com/agentcore/agentcore/pkg/types"
)

var tracer = otel.Tracer("github.com/agentcore/agentcore/internal/tool")

// summarize truncates an arbitrary value's string form for telemetry to
// 160 characters, the per-line cap of the envelope previews (spec.md §6);
// it applies no line limit.
func summarize(v any) string {
	s := fmt.Sprintf("%v", v)
	const maxLen = 160
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// resultError computes the error message from a returned record, in
// priority order (spec.md §4.2 step 4): error string, error non-string
// (summarized), then failure flags isError/ok/success with a
// message/text/content[] fallback.
func resultError(result map[string]any) (msg string, isError bool) {
	if result == nil {
		return "", false
	}
	if e, ok := result["error"]; ok {
		if s, ok := e.(string); ok {
			return s, true
		}
		return summarize(e), true
	}
	failed := false
	if v, ok := result["isError"].(bool); ok && v {
		failed = true
	}
	if v, ok := result["ok"].(bool); ok && !v {
		failed = true
	}
	if v, ok := result["success"].(bool); ok && !v {
		failed = true
	}
	if !failed {
		return "", false
	}
	if s, ok := result["message"].(string); ok {
		return s, true
	}
	if s, ok := result["text"].(string); ok {
		return s, true
	}
	if c, ok := result["content"].([]any); ok && len(c) > 0 {
		return summarize(c), true
	}
	return "tool failed", true
}

// Wrap applies the uniform wrapper (spec.md §4.2) around a builtin
// Definition's Execute: budget consumption, tool.call/tool.result
// telemetry with display envelopes, an otel span, and the
// onToolExecutionSettled hook. The returned function is what the
// Registry actually dispatches to; def.Execute is never called directly
// by anything else.
func Wrap(def Definition, execCtx *types.ToolExecutionContext) func(input map[string]any, meta CallMetadata) (map[string]any, error) {
	return func(input map[string]any, meta CallMetadata) (map[string]any, error) {
		if execCtx != nil && execCtx.ToolBudget != nil {
			if err := execCtx.ToolBudget.Consume(def.Name); err != nil {
				if be, ok := err.(*types.ToolBudgetExceeded); ok {
					event.Publish(event.Event{Type: event.BudgetExceeded, Data: event.BudgetExceededData{
						ToolName: be.ToolName, Used: be.Used, Remaining: be.Remaining, Limit: be.Limit,
					}})
				}
				return nil, err
			}
		}

		_, span := tracer.Start(context.Background(), "tool."+def.Name, trace.WithAttributes(
			attribute.String("tool.name", def.Name),
		))
		start := time.Now()

		toolLog := logging.Component("tool")
		toolLog.Debug().
			Str("tool", def.Name).
			Str("callId", meta.CallID).
			Str("sessionId", meta.SessionID).
			Str("taskId", meta.TaskID).
			Int("round", meta.Round).
			Int("segment", meta.SegmentIndex).
			Msg("tool.call")

		callEnvelope := types.NewCallEnvelope(def.Name, summarizeInput(input))
		event.Publish(event.Event{Type: event.ToolCall, Data: event.ToolCallData{
			ToolName: def.Name, CallID: meta.CallID, Input: summarizeInput(input), Envelope: callEnvelope,
		}})
		if execCtx != nil && execCtx.OnOutputMessage != nil {
			execCtx.OnOutputMessage(def.Name, callEnvelope)
		}

		result := def.Execute(input, meta)

		errMsg, isErr := resultError(result)
		span.SetAttributes(
			attribute.Bool("tool.ok", !isErr),
			attribute.Int64("tool.duration_ms", time.Since(start).Milliseconds()),
		)
		if isErr {
			span.SetStatus(codes.Error, errMsg)
		}
		span.End()

		logEvent := toolLog.Info()
		if isErr {
			logEvent = toolLog.Warn()
		}
		logEvent.
			Str("tool", def.Name).
			Str("callId", meta.CallID).
			Str("sessionId", meta.SessionID).
			Str("taskId", meta.TaskID).
			Int("round", meta.Round).
			Int("segment", meta.SegmentIndex).
			Bool("ok", !isErr).
			Int64("durationMs", time.Since(start).Milliseconds()).
			Msg("tool.result")

		resultEnvelope := types.NewResultEnvelope(def.Name, "", summarizeInput(result))
		event.Publish(event.Event{Type: event.ToolResult, Data: event.ToolResultData{
			ToolName: def.Name, CallID: meta.CallID, OK: !isErr, Error: errMsg, Envelope: resultEnvelope,
		}})
		if execCtx != nil && execCtx.OnOutputMessage != nil {
			execCtx.OnOutputMessage(def.Name, resultEnvelope)
		}

		if execCtx != nil && execCtx.OnToolExecutionSettled != nil {
			func() {
				defer func() { recover() }() // hook failures are swallowed (spec.md §4.2 step 6)
				execCtx.OnToolExecutionSettled(types.ToolSettledEvent{
					ToolName: def.Name, Input: input, OK: !isErr, Result: result,
				})
			}()
		}

		publishAnalytics(def.Name, !isErr)
		return result, nil
	}
}

// summarizeInput bounds a record's values for telemetry display without
// mutating the original (spec.md §6 "truncate previews... clip long
// strings with trailing ...").
func summarizeInput(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			lines := splitPreviewLines(s)
			out[k] = lines
			continue
		}
		out[k] = v
	}
	return out
}

func splitPreviewLines(s string) any {
	const maxLines = 6
	const maxLineLen = 160
	lines := []string{}
	cur := make([]byte, 0, maxLineLen)
	truncated := false
	lineCount := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' {
			lines = append(lines, string(cur))
			cur = cur[:0]
			lineCount++
			if lineCount >= maxLines {
				if i < len(s)-1 {
					truncated = true
				}
				break
			}
			continue
		}
		if len(cur) >= maxLineLen {
			if len(cur) == maxLineLen {
				cur = append(cur, "..."...)
				truncated = true
			}
			continue
		}
		cur = append(cur, c)
	}
	if lineCount < maxLines {
		lines = append(lines, string(cur))
	}
	if !truncated {
		return s
	}
	return map[string]any{"preview": lines, "truncated": true}
}
