/*
Package event provides the agent execution engine's telemetry pub/sub bus.

The Tool Registry's uniform wrapper (internal/tool) and the TODO Store
(internal/todostore) publish through this bus rather than calling each
other directly, so a host process can observe call/result/mutation/budget
telemetry without threading a callback through every layer. The Policy &
Guard predicates (internal/policy) return plain booleans and do not
publish on this bus.

# Architecture

The package is built on top of watermill's gochannel for infrastructure
while keeping direct-call semantics so subscribers receive typed Data
payloads instead of re-parsing JSON. It supports both asynchronous
(Publish) and synchronous (PublishSync) delivery.

# Event Types

  - tool.call / tool.result: every tool invocation's wrapper-built
    envelope, win or lose (spec.md §4.2).
  - todo.add / todo.update / todo.complete / todo.reopen / todo.remove /
    todo.clear_done: one event per todostore mutation (spec.md §4.4).
  - policy.denied: payload type for a Policy & Guard rejection
    (spec.md §4.1, §7); no package in this module publishes it.
  - budget.exceeded: a ToolBudget rejected a call before Execute ran
    (spec.md §4.2 step 2).

# Basic Usage

	event.Publish(event.Event{
		Type: event.ToolCall,
		Data: event.ToolCallData{ToolName: "read", Input: input, Envelope: envelope},
	})

	unsubscribe := event.Subscribe(event.ToolResult, func(e event.Event) {
		data := e.Data.(event.ToolResultData)
		log.Info().Str("tool", data.ToolName).Bool("ok", data.OK).Msg("tool result")
	})
	defer unsubscribe()

# Testing

	event.Reset() // clears global bus state between tests
*/
package event
