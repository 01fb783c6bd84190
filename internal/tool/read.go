package tool

import (
	"bufio"
	"os"
	"strings"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

// readFactory implements `read {filepath}` (spec.md §4.2.1): returns
// `{size, content: [[lineIdx, lineText]...]}` or `{error}`.
func readFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Read a file's contents, line by line.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			path, ok := stringArg(input, "filepath")
			if !ok || path == "" {
				return errorField("Invalid input")
			}
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanReadFile(path, permsOf(execCtx), workspace) {
				return errorField("Permission denied: read path not allowed")
			}

			f, err := os.Open(path)
			if err != nil {
				return errorFieldDetail("Invalid filepath", err.Error())
			}
			defer f.Close()

			fi, err := f.Stat()
			if err != nil {
				return errorFieldDetail("Invalid filepath", err.Error())
			}

			var content [][2]any
			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
			idx := 0
			for scanner.Scan() {
				content = append(content, [2]any{idx, scanner.Text()})
				idx++
			}
			if err := scanner.Err(); err != nil {
				return errorFieldDetail("Failed reading file", err.Error())
			}

			return map[string]any{"size": fi.Size(), "content": content}
		},
	}
}

// readFileContent is a small helper shared by write/cp for diff previews.
func readFileContent(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func lineList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
