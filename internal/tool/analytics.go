package tool

import (
	"sync"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
)

// analyticsSink is an optional second consumer of the tool.call/
// tool.result telemetry (SPEC_FULL.md §B), disabled by default. It is
// wired directly rather than through the event bus so the registry never
// depends on posthog being reachable: EnableAnalytics swaps in a real
// client, and publishAnalytics is a no-op until it does.
var (
	analyticsMu     sync.RWMutex
	analyticsClient posthog.Client
	anonymousID     string
)

// EnableAnalytics wires a posthog client keyed by a stable, salted
// per-machine id (never a real user identifier). Disabled (nil) by
// default; tests and operators that don't call this incur zero posthog
// traffic.
func EnableAnalytics(apiKey, endpoint string) error {
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		return err
	}
	id, err := machineid.ProtectedID("agentcore")
	if err != nil {
		id = "unknown"
	}
	analyticsMu.Lock()
	analyticsClient = client
	anonymousID = id
	analyticsMu.Unlock()
	return nil
}

// DisableAnalytics closes and clears the sink (test reset hook).
func DisableAnalytics() {
	analyticsMu.Lock()
	defer analyticsMu.Unlock()
	if analyticsClient != nil {
		analyticsClient.Close()
	}
	analyticsClient = nil
	anonymousID = ""
}

func publishAnalytics(toolName string, ok bool) {
	analyticsMu.RLock()
	client, id := analyticsClient, anonymousID
	analyticsMu.RUnlock()
	if client == nil {
		return
	}
	client.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "tool_executed",
		Properties: posthog.NewProperties().
			Set("tool_name", toolName).
			Set("ok", ok),
	})
}
