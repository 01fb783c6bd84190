package tool

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

// ripgrepFactory implements `ripgrep {dirpath, pattern, caseSensitive?,
// fileGlob?}` (spec.md §4.2.1): spawns `rg`; arguments built
// deterministically as `[-i?, -g fileGlob?, -g excludes..., pattern,
// dirpath]`.
func ripgrepFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Search file contents with ripgrep.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			dirpath, ok := stringArg(input, "dirpath")
			if !ok || dirpath == "" {
				return errorField("Invalid input")
			}
			pattern, ok := stringArg(input, "pattern")
			if !ok || pattern == "" {
				return errorField("Invalid input")
			}
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanRipgrep(dirpath, permsOf(execCtx), workspace) {
				return errorField("Permission denied: ripgrep path not allowed")
			}

			if _, err := exec.LookPath("rg"); err != nil {
				return errorField("ripgrep command is not available in runtime environment")
			}

			caseSensitive := boolArg(input, "caseSensitive", false)
			fileGlob, hasGlob := stringArg(input, "fileGlob")

			args := []string{}
			if !caseSensitive {
				args = append(args, "-i")
			}
			if hasGlob && fileGlob != "" {
				args = append(args, "-g", fileGlob)
			}
			for _, excl := range policy.GetRipgrepExcludeGlobs(dirpath) {
				args = append(args, "-g", excl)
			}
			args = append(args, pattern, dirpath)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			cmd := exec.CommandContext(ctx, "rg", args...)
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			err := cmd.Run()

			// rg exits 1 when no matches are found; that is a successful
			// search with an empty result, not a tool error.
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
					return map[string]any{"matches": "", "args": args}
				}
				return errorFieldDetail("ripgrep failed", stderr.String())
			}

			return map[string]any{"matches": stdout.String(), "args": args}
		},
	}
}
