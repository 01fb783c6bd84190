package memctx

import (
	"strings"

	"github.com/agentcore/agentcore/pkg/types"
)

const maxBlockContentLen = 512
const maxBlockTags = 8
const maxBlockTagLen = 32

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func normalizeTags(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range arr {
		s, ok := asString(e)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(s) > maxBlockTagLen {
			s = s[:maxBlockTagLen]
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) >= maxBlockTags {
			break
		}
	}
	return out
}

// NormalizeMemoryBlock coerces a raw, untrusted patch entry into a valid
// MemoryBlock. ok is false when the entry must be discarded (spec.md
// §4.3: id/type/content coercible to non-empty trimmed strings).
func NormalizeMemoryBlock(raw map[string]any, tier types.Tier, currentRound int) (types.MemoryBlock, bool) {
	id, _ := asString(raw["id"])
	id = strings.TrimSpace(id)
	typ, _ := asString(raw["type"])
	typ = strings.TrimSpace(typ)
	content, _ := asString(raw["content"])
	content = strings.TrimSpace(content)
	if id == "" || typ == "" || content == "" {
		return types.MemoryBlock{}, false
	}
	if len(content) > maxBlockContentLen {
		content = content[:maxBlockContentLen]
	}

	decay := 0.0
	if v, ok := asFloat(raw["decay"]); ok {
		decay = clamp01(v)
	}

	confidence := 0.5
	if v, ok := asFloat(raw["confidence"]); ok {
		confidence = clamp01(v)
	}

	round := 1
	if v, ok := asFloat(raw["round"]); ok {
		round = int(v)
	}
	if round < 1 {
		round = 1
	}
	if round > currentRound && currentRound > 0 {
		round = currentRound
	}

	tags := normalizeTags(raw["tags"])

	var status types.BlockStatus
	if s, ok := asString(raw["status"]); ok {
		status = types.BlockStatus(strings.TrimSpace(s))
	}
	if tier == types.TierWorking && status == "" {
		status = types.StatusOpen
	}

	return types.MemoryBlock{
		ID:         id,
		Type:       typ,
		Decay:      decay,
		Confidence: confidence,
		Round:      round,
		Tags:       tags,
		Content:    content,
		Status:     status,
	}, true
}

// betterOrEqualLater reports whether candidate should replace current
// under the dedup rule: strictly higher quality wins; on quality tie the
// higher round wins; on a full tie the later-appearing entry wins
// (spec.md §8 property 3, the authoritative tie-break).
func betterOrEqualLater(candidate, current types.MemoryBlock) bool {
	cq, xq := candidate.Quality(), current.Quality()
	if cq > xq {
		return true
	}
	if cq < xq {
		return false
	}
	if candidate.Round > current.Round {
		return true
	}
	if candidate.Round < current.Round {
		return false
	}
	return true // full tie: later-appearing wins
}

// DedupTierByID resolves duplicate ids within a single ordered slice,
// preserving first-seen order of the surviving ids.
func DedupTierByID(blocks []types.MemoryBlock) []types.MemoryBlock {
	order := make([]string, 0, len(blocks))
	best := make(map[string]types.MemoryBlock, len(blocks))
	for _, b := range blocks {
		if existing, ok := best[b.ID]; !ok {
			best[b.ID] = b
			order = append(order, b.ID)
		} else if betterOrEqualLater(b, existing) {
			best[b.ID] = b
		}
	}
	out := make([]types.MemoryBlock, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}
