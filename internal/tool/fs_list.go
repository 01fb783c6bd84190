package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

// dirEntryInfo is the filesystem-primitive view of one directory entry,
// shared by ls and tree (spec.md §4.2.1: "implemented with filesystem
// primitives, not shelling out").
type dirEntryInfo struct {
	name      string
	isDir     bool
	isSymlink bool
	target    string
	size      int64
	mode      string
}

func readDirInfos(dirpath string) ([]dirEntryInfo, error) {
	entries, err := os.ReadDir(dirpath)
	if err != nil {
		return nil, err
	}
	out := make([]dirEntryInfo, 0, len(entries))
	for _, e := range entries {
		info := dirEntryInfo{name: e.Name()}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info.mode = fi.Mode().String()
		info.size = fi.Size()
		if fi.Mode()&os.ModeSymlink != 0 {
			info.isSymlink = true
			target, err := os.Readlink(filepath.Join(dirpath, e.Name()))
			if err == nil {
				info.target = target
			}
			targetInfo, err := os.Stat(filepath.Join(dirpath, e.Name()))
			if err == nil {
				info.isDir = targetInfo.IsDir()
			}
		} else {
			info.isDir = e.IsDir()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func summaryLine(ndirs, nfiles int) string {
	dirWord := "directory"
	if ndirs != 1 {
		dirWord = "directories"
	}
	fileWord := "file"
	if nfiles != 1 {
		fileWord = "files"
	}
	return fmt.Sprintf("%d %s, %d %s", ndirs, dirWord, nfiles, fileWord)
}

// lsFactory implements `ls {dirpath, all?, long?}` (spec.md §4.2.1).
func lsFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "List a directory's entries.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			dirpath, ok := stringArg(input, "dirpath")
			if !ok || dirpath == "" {
				return errorField("Invalid input")
			}
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanListDir(dirpath, permsOf(execCtx), workspace) {
				return errorField("Permission denied: ls path not allowed")
			}
			all := boolArg(input, "all", false)
			long := boolArg(input, "long", false)

			infos, err := readDirInfos(dirpath)
			if err != nil {
				return errorFieldDetail("Invalid dirpath", err.Error())
			}

			ndirs, nfiles := 0, 0
			entries := make([]map[string]any, 0, len(infos))
			for _, info := range infos {
				if !all && policy.ShouldHideDirEntry(info.name) {
					continue
				}
				if info.isDir {
					ndirs++
				} else {
					nfiles++
				}
				entry := map[string]any{"name": info.name, "isDir": info.isDir}
				if info.isSymlink {
					entry["symlinkTarget"] = info.target
				}
				if long {
					entry["size"] = info.size
					entry["mode"] = info.mode
				}
				entries = append(entries, entry)
			}

			result := map[string]any{
				"dirpath": dirpath,
				"entries": entries,
				"summary": summaryLine(ndirs, nfiles),
			}
			return result
		},
	}
}

const defaultTreeLevel = 3

// treeFactory implements `tree {dirpath, level?, all?}` (spec.md
// §4.2.1): `|--`/`` `--`` connectors, `entryname/` for directories, and
// `name -> target` for symbolic links.
func treeFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Render a directory tree.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			dirpath, ok := stringArg(input, "dirpath")
			if !ok || dirpath == "" {
				return errorField("Invalid input")
			}
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanReadTree(dirpath, permsOf(execCtx), workspace) {
				return errorField("Permission denied: tree path not allowed")
			}
			level := intArg(input, "level", defaultTreeLevel)
			all := boolArg(input, "all", false)

			var lines []string
			ndirs, nfiles := 0, 0
			var walk func(dir string, prefix string, depth int)
			walk = func(dir string, prefix string, depth int) {
				if depth > level {
					return
				}
				infos, err := readDirInfos(dir)
				if err != nil {
					return
				}
				visible := infos[:0:0]
				for _, info := range infos {
					if !all && policy.ShouldHideDirEntry(info.name) {
						continue
					}
					visible = append(visible, info)
				}
				for i, info := range visible {
					connector := "|--"
					nextPrefix := prefix + "|   "
					if i == len(visible)-1 {
						connector = "`--"
						nextPrefix = prefix + "    "
					}
					label := info.name
					if info.isDir {
						label += "/"
						ndirs++
					} else {
						nfiles++
					}
					if info.isSymlink {
						label = info.name + " -> " + info.target
					}
					lines = append(lines, prefix+connector+" "+label)
					if info.isDir && !info.isSymlink {
						walk(filepath.Join(dir, info.name), nextPrefix, depth+1)
					}
				}
			}
			walk(dirpath, "", 1)

			return map[string]any{
				"dirpath": dirpath,
				"tree":    strings.Join(lines, "\n"),
				"summary": summaryLine(ndirs, nfiles),
			}
		},
	}
}

func permsOf(execCtx *types.ToolExecutionContext) *types.Permissions {
	if execCtx == nil {
		return nil
	}
	return execCtx.Permissions
}
