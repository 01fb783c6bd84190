package tool

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// cursorTag is the small JSON payload base64url-encoded into a session
// cursor (spec.md §4.2.4 "Cursor encoding"): normal bash cursors carry a
// sequence number, background cursors carry a log line offset.
type cursorTag struct {
	Kind   string `json:"k"`
	Seq    *int   `json:"seq,omitempty"`
	Offset *int   `json:"offset,omitempty"`
}

func encodeCursor(tag cursorTag) string {
	data, _ := json.Marshal(tag)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(payload string) (cursorTag, error) {
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return cursorTag{}, fmt.Errorf("tool: invalid cursor encoding: %w", err)
	}
	var tag cursorTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return cursorTag{}, fmt.Errorf("tool: invalid cursor payload: %w", err)
	}
	return tag, nil
}

// EncodeNormalCursor encodes a `bash {mode:"normal", action:"query"}`
// cursor: base64url({k:"normal", seq}).
func EncodeNormalCursor(seq int) string {
	return encodeCursor(cursorTag{Kind: "normal", Seq: &seq})
}

// DecodeNormalCursor decodes and validates a normal-mode cursor, rejecting
// wrong-kind or out-of-range payloads (spec.md §4.2.4 "Decoders reject
// wrong-kind or out-of-range payloads").
func DecodeNormalCursor(payload string) (int, error) {
	tag, err := decodeCursor(payload)
	if err != nil {
		return 0, err
	}
	if tag.Kind != "normal" || tag.Seq == nil {
		return 0, fmt.Errorf("tool: cursor is not a normal-mode cursor")
	}
	if *tag.Seq < 0 {
		return 0, fmt.Errorf("tool: cursor seq out of range")
	}
	return *tag.Seq, nil
}

// EncodeBackgroundCursor encodes a `background {action:"query_logs"}`
// cursor: base64url({k:"background", offset}).
func EncodeBackgroundCursor(offset int) string {
	return encodeCursor(cursorTag{Kind: "background", Offset: &offset})
}

// DecodeBackgroundCursor decodes and validates a background-mode cursor.
func DecodeBackgroundCursor(payload string) (int, error) {
	tag, err := decodeCursor(payload)
	if err != nil {
		return 0, err
	}
	if tag.Kind != "background" || tag.Offset == nil {
		return 0, fmt.Errorf("tool: cursor is not a background-mode cursor")
	}
	if *tag.Offset < 0 {
		return 0, fmt.Errorf("tool: cursor offset out of range")
	}
	return *tag.Offset, nil
}
