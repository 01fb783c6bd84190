package tool

import (
	"os"
	"path/filepath"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

// unifiedDiffPreview builds a short diff preview for the tool call
// envelope when a write/cp overwrites an existing file (SPEC_FULL.md §B:
// "used only for the display envelope, never for deciding success/
// failure"). Returns ("", false) when there is nothing to diff.
func unifiedDiffPreview(before, after string) (string, bool) {
	if before == after {
		return "", false
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return dmp.DiffPrettyText(diffs), true
}

// writeFactory implements `write {filepath, content, append?}` (spec.md
// §4.2.1): writes bytes; append concatenates existing content then
// overwrites. Returns `{success, filepath, bytes, append}`.
func writeFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Write (or append to) a file.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			path, ok := stringArg(input, "filepath")
			if !ok || path == "" {
				return errorField("Invalid input")
			}
			content, ok := stringArg(input, "content")
			if !ok {
				return errorField("Invalid input")
			}
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanWriteFile(path, permsOf(execCtx), workspace) {
				return errorField("Permission denied: write path not allowed")
			}

			appendMode := boolArg(input, "append", false)
			existing, hadExisting := readFileContent(path)

			final := content
			if appendMode && hadExisting {
				final = existing + content
			}

			if dir := filepath.Dir(path); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return errorFieldDetail("Failed to write file", err.Error())
				}
			}
			if err := os.WriteFile(path, []byte(final), 0o644); err != nil {
				return errorFieldDetail("Failed to write file", err.Error())
			}

			result := map[string]any{
				"success":  true,
				"filepath": path,
				"bytes":    len(final),
				"append":   appendMode,
			}
			if hadExisting {
				if preview, ok := unifiedDiffPreview(existing, final); ok {
					result["diffPreview"] = preview
				}
			}
			return result
		},
	}
}
