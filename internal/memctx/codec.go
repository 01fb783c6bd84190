package memctx

import (
	"encoding/json"

	"github.com/agentcore/agentcore/pkg/types"
)

// EncodeModelContext and DecodeModelContext are the pluggable (encode,
// decode) pair spec.md §9 calls for: the only contractual requirement is
// that DecodeModelContext(EncodeModelContext(x)) deep-equals x for any
// normalized ModelContextV2. encoding/json's map-key sorting gives a
// deterministic, key-order-stable wire form without inventing a bespoke
// format; Go's own struct field tags already fix field order for every
// non-map shape.
func EncodeModelContext(mc types.ModelContextV2) string {
	b, err := json.Marshal(mc)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeModelContext parses a payload produced by EncodeModelContext.
func DecodeModelContext(payload string) (types.ModelContextV2, error) {
	var mc types.ModelContextV2
	err := json.Unmarshal([]byte(payload), &mc)
	return mc, err
}

// EncodeContextTagMessage wraps an encoded ModelContextV2 payload in the
// literal `<context>...</context>` envelope used for the first system
// message on the wire (spec.md §6).
func EncodeContextTagMessage(mc types.ModelContextV2) string {
	return "<context>\n" + EncodeModelContext(mc) + "\n</context>"
}
