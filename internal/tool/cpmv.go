package tool

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// cpFactory implements `cp {source, destination, recursive?, overwrite?}`
// (spec.md §4.2.1): filesystem-level.
func cpFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Copy a file or directory.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			src, ok := stringArg(input, "source")
			if !ok || src == "" {
				return errorField("Invalid input")
			}
			dst, ok := stringArg(input, "destination")
			if !ok || dst == "" {
				return errorField("Invalid input")
			}
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanCopyFrom(src, permsOf(execCtx), workspace) {
				return errorField("Permission denied: cp source not allowed")
			}
			if !policy.CanCopyTo(dst, permsOf(execCtx), workspace) {
				return errorField("Permission denied: cp destination not allowed")
			}

			recursive := boolArg(input, "recursive", false)
			overwrite := boolArg(input, "overwrite", false)

			if _, err := os.Stat(dst); err == nil && !overwrite {
				return errorField("Destination exists")
			}

			fi, err := os.Stat(src)
			if err != nil {
				return errorFieldDetail("Invalid source", err.Error())
			}

			var beforeContent string
			var hadExisting bool
			if !fi.IsDir() {
				beforeContent, hadExisting = readFileContent(dst)
			}

			if fi.IsDir() {
				if !recursive {
					return errorField("source is a directory, recursive not set")
				}
				if err := copyTree(src, dst); err != nil {
					return errorFieldDetail("Failed to copy", err.Error())
				}
			} else {
				if err := copyFile(src, dst); err != nil {
					return errorFieldDetail("Failed to copy", err.Error())
				}
			}

			result := map[string]any{"success": true, "source": src, "destination": dst, "recursive": recursive, "overwrite": overwrite}
			if hadExisting {
				if after, ok := readFileContent(dst); ok {
					if preview, ok := unifiedDiffPreview(beforeContent, after); ok {
						result["diffPreview"] = preview
					}
				}
			}
			return result
		},
	}
}

// mvFactory implements `mv {source, destination, overwrite?}` (spec.md
// §4.2.1): filesystem-level; falls back to copy-then-delete on
// cross-device errors.
func mvFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Move (rename) a file or directory.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			src, ok := stringArg(input, "source")
			if !ok || src == "" {
				return errorField("Invalid input")
			}
			dst, ok := stringArg(input, "destination")
			if !ok || dst == "" {
				return errorField("Invalid input")
			}
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanMoveFrom(src, permsOf(execCtx), workspace) {
				return errorField("Permission denied: mv source not allowed")
			}
			if !policy.CanMoveTo(dst, permsOf(execCtx), workspace) {
				return errorField("Permission denied: mv destination not allowed")
			}

			overwrite := boolArg(input, "overwrite", false)
			if _, err := os.Stat(dst); err == nil && !overwrite {
				return errorField("Destination exists")
			}

			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return errorFieldDetail("Failed to move", err.Error())
			}

			err := os.Rename(src, dst)
			if err != nil {
				var linkErr *os.LinkError
				if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
					fi, statErr := os.Stat(src)
					if statErr != nil {
						return errorFieldDetail("Failed to move", statErr.Error())
					}
					if fi.IsDir() {
						err = copyTree(src, dst)
					} else {
						err = copyFile(src, dst)
					}
					if err == nil {
						err = os.RemoveAll(src)
					}
				}
			}
			if err != nil {
				return errorFieldDetail("Failed to move", err.Error())
			}

			return map[string]any{"success": true, "source": src, "destination": dst, "overwrite": overwrite}
		},
	}
}
