package tool

import (
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

// gitFactory implements the `git` tool (SPEC_FULL.md §C.1): `status`,
// `diff {path?, staged?}`, `log {limit?, path?}`, `add {paths[]}`,
// `commit {message}`, all operating in-process via go-git/v5 against the
// workspace's repository instead of shelling to the git binary.
func gitFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Inspect and mutate the workspace's git repository.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanUseGit("", permsOf(execCtx), workspace) {
				return errorField("Permission denied: git not allowed")
			}

			action, ok := stringArg(input, "action")
			if !ok || action == "" {
				return errorField("Invalid input")
			}

			repo, err := git.PlainOpen(workspace)
			if err != nil {
				return errorField("git command is not available in runtime environment")
			}

			switch action {
			case "status":
				return gitStatus(repo)
			case "diff":
				path, _ := stringArg(input, "path")
				staged := boolArg(input, "staged", false)
				return gitDiff(repo, path, staged, workspace, execCtx)
			case "log":
				limit := intArg(input, "limit", 20)
				path, _ := stringArg(input, "path")
				return gitLog(repo, limit, path)
			case "add":
				paths, ok := stringSliceArg(input, "paths")
				if !ok || len(paths) == 0 {
					return errorField("Invalid input")
				}
				return gitAdd(repo, paths, workspace, execCtx)
			case "commit":
				message, ok := stringArg(input, "message")
				if !ok || message == "" {
					return errorField("Invalid input")
				}
				return gitCommit(repo, message)
			default:
				return errorField("Invalid input")
			}
		},
	}
}

func gitStatus(repo *git.Repository) map[string]any {
	wt, err := repo.Worktree()
	if err != nil {
		return errorFieldDetail("git status failed", err.Error())
	}
	status, err := wt.Status()
	if err != nil {
		return errorFieldDetail("git status failed", err.Error())
	}
	lines := make([]string, 0, len(status))
	for path, s := range status {
		lines = append(lines, fmt.Sprintf("%c%c %s", s.Staging, s.Worktree, path))
	}
	return map[string]any{"porcelain": strings.Join(lines, "\n")}
}

func gitDiff(repo *git.Repository, path string, staged bool, workspace string, execCtx *types.ToolExecutionContext) map[string]any {
	if path != "" && !policy.CanReadFile(path, permsOf(execCtx), workspace) {
		return errorField("Permission denied: git path not allowed")
	}
	head, err := repo.Head()
	if err != nil {
		return errorFieldDetail("git diff failed", err.Error())
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return errorFieldDetail("git diff failed", err.Error())
	}
	tree, err := commit.Tree()
	if err != nil {
		return errorFieldDetail("git diff failed", err.Error())
	}

	wt, err := repo.Worktree()
	if err != nil {
		return errorFieldDetail("git diff failed", err.Error())
	}
	status, err := wt.Status()
	if err != nil {
		return errorFieldDetail("git diff failed", err.Error())
	}

	var buf strings.Builder
	for p, s := range status {
		if path != "" && p != path {
			continue
		}
		changed := s.Worktree != git.Unmodified
		if staged {
			changed = s.Staging != git.Unmodified
		}
		if !changed {
			continue
		}
		var before string
		if f, err := tree.File(p); err == nil {
			before, _ = f.Contents()
		}
		after, _ := readFileContent(workspace + "/" + p)
		if preview, ok := unifiedDiffPreview(before, after); ok {
			buf.WriteString("--- " + p + "\n")
			buf.WriteString(preview)
			buf.WriteString("\n")
		}
	}
	return map[string]any{"diff": buf.String()}
}

func gitLog(repo *git.Repository, limit int, path string) map[string]any {
	head, err := repo.Head()
	if err != nil {
		return errorFieldDetail("git log failed", err.Error())
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: optionalPath(path)})
	if err != nil {
		return errorFieldDetail("git log failed", err.Error())
	}
	defer iter.Close()

	var entries []map[string]any
	err = iter.ForEach(func(c *object.Commit) error {
		if len(entries) >= limit {
			return nil
		}
		entries = append(entries, map[string]any{
			"hash":    c.Hash.String(),
			"author":  c.Author.Name,
			"message": strings.TrimSpace(c.Message),
			"when":    c.Author.When.Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return errorFieldDetail("git log failed", err.Error())
	}
	return map[string]any{"commits": entries}
}

func optionalPath(path string) *string {
	if path == "" {
		return nil
	}
	return &path
}

func gitAdd(repo *git.Repository, paths []string, workspace string, execCtx *types.ToolExecutionContext) map[string]any {
	wt, err := repo.Worktree()
	if err != nil {
		return errorFieldDetail("git add failed", err.Error())
	}
	for _, p := range paths {
		if !policy.CanWriteFile(p, permsOf(execCtx), workspace) {
			return errorField("Permission denied: git add path not allowed")
		}
		if _, err := wt.Add(p); err != nil {
			return errorFieldDetail("git add failed", err.Error())
		}
	}
	return map[string]any{"success": true, "added": paths}
}

func gitCommit(repo *git.Repository, message string) map[string]any {
	wt, err := repo.Worktree()
	if err != nil {
		return errorFieldDetail("git commit failed", err.Error())
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "agentcore", When: time.Now()},
	})
	if err != nil {
		return errorFieldDetail("git commit failed", err.Error())
	}
	return map[string]any{"success": true, "hash": hash.String()}
}
