package policy

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentcore/agentcore/pkg/types"
)

// builtin deny patterns, applied before any user rule (spec.md §4.1,
// decision step 2). Order does not matter within this set: any match
// denies.
var builtinDeny = []*regexp.Regexp{
	regexp.MustCompile(`\.\.`),                  // path traversal, literal
	regexp.MustCompile(`%2e%2e`),                // path traversal, single-encoded
	regexp.MustCompile(`(?i)%252e%252e`),        // path traversal, double-encoded
	regexp.MustCompile(`\x00`),                  // null-byte injection
	regexp.MustCompile(`^\\\\`),                 // Windows UNC path
	regexp.MustCompile("[;&|`]"),                // shell metacharacters, backtick
	regexp.MustCompile(`\$\(`),                  // $() command substitution
	regexp.MustCompile(`\$\{`),                  // ${VAR} expansion
	regexp.MustCompile(`(^|/)(etc|var|usr|bin|sbin|dev|proc|sys|boot|lib|root)(/|$)`), // Unix system dirs
	regexp.MustCompile(`(?i)^[a-z]:\\windows\\`),                                      // Windows system dirs
	regexp.MustCompile(`(?i)^[a-z]:\\program files`),
}

var allowedURLSchemes = map[string]bool{"http": true, "https": true}
var deniedURLSchemeHint = regexp.MustCompile(`(?i)^(file|ftp|ssh|telnet|gopher|sftp)://`)

// sensitive workspace path detection (spec.md §4.1 step 1, GLOSSARY).
var envBasename = regexp.MustCompile(`(^|/)\.env`)

// isSensitiveWorkspacePath reports whether target (already resolved
// relative to workspace) is the reserved .agent tree or one of the named
// sensitive paths.
func isSensitiveWorkspacePath(relFromWorkspace string) bool {
	rel := filepath.ToSlash(relFromWorkspace)
	rel = strings.TrimPrefix(rel, "./")
	if rel == ".agent" || strings.HasPrefix(rel, ".agent/") {
		return true
	}
	if rel == "secrets" || strings.HasPrefix(rel, "secrets/") {
		return true
	}
	if rel == "agent.config.json" {
		return true
	}
	if envBasename.MatchString("/" + rel) {
		return true
	}
	return false
}

// relativeToWorkspace best-efforts a path (which may itself be relative,
// absolute, or a file:// URL-ish string) into a workspace-relative slash
// path for sensitivity checks. It never errors: on any ambiguity it
// returns the cleaned input unchanged so the regex-based checks below
// still have a chance to fire.
func relativeToWorkspace(target, workspace string) string {
	if workspace == "" {
		return filepath.ToSlash(filepath.Clean(target))
	}
	abs := target
	if !filepath.IsAbs(target) {
		abs = filepath.Join(workspace, target)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(filepath.Clean(workspace), abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func decodeForm(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return s
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func matchesAnyUserRegex(patterns []string, s string) bool {
	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			continue
		}
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// evaluate implements the decision order common to every `can*` predicate
// (spec.md §4.1): hard block, builtin deny, user deny, user allow.
func evaluate(target, workspace string, spec types.PermissionSpec) bool {
	if workspace != "" && isSensitiveWorkspacePath(relativeToWorkspace(target, workspace)) {
		return false
	}
	decoded := decodeForm(target)
	if matchesAny(builtinDeny, target) || matchesAny(builtinDeny, decoded) {
		return false
	}
	if matchesAnyUserRegex(spec.Deny, target) || matchesAnyUserRegex(spec.Deny, decoded) {
		return false
	}
	if len(spec.Allow) == 0 {
		return true
	}
	return matchesAnyUserRegex(spec.Allow, target) || matchesAnyUserRegex(spec.Allow, decoded)
}

func specFor(perms *types.Permissions, tool string) types.PermissionSpec {
	if perms == nil || perms.Permissions == nil {
		return types.PermissionSpec{}
	}
	return perms.Permissions[tool]
}

// CanReadFile reports whether `read` may access path.
func CanReadFile(path string, perms *types.Permissions, workspace string) bool {
	return evaluate(path, workspace, specFor(perms, "read"))
}

// CanWriteFile reports whether `write` may access path.
func CanWriteFile(path string, perms *types.Permissions, workspace string) bool {
	return evaluate(path, workspace, specFor(perms, "write"))
}

// CanListDir reports whether `ls` may access dirpath.
func CanListDir(dirpath string, perms *types.Permissions, workspace string) bool {
	return evaluate(dirpath, workspace, specFor(perms, "ls"))
}

// CanReadTree reports whether `tree` may access dirpath.
func CanReadTree(dirpath string, perms *types.Permissions, workspace string) bool {
	return evaluate(dirpath, workspace, specFor(perms, "tree"))
}

// CanRipgrep reports whether `ripgrep` may search dirpath.
func CanRipgrep(dirpath string, perms *types.Permissions, workspace string) bool {
	return evaluate(dirpath, workspace, specFor(perms, "ripgrep"))
}

// CanCopyFrom/CanCopyTo gate the `cp` tool's source and destination.
func CanCopyFrom(path string, perms *types.Permissions, workspace string) bool {
	return evaluate(path, workspace, specFor(perms, "cp"))
}
func CanCopyTo(path string, perms *types.Permissions, workspace string) bool {
	return evaluate(path, workspace, specFor(perms, "cp"))
}

// CanMoveFrom/CanMoveTo gate the `mv` tool's source and destination.
func CanMoveFrom(path string, perms *types.Permissions, workspace string) bool {
	return evaluate(path, workspace, specFor(perms, "mv"))
}
func CanMoveTo(path string, perms *types.Permissions, workspace string) bool {
	return evaluate(path, workspace, specFor(perms, "mv"))
}

// CanUseGit reports whether the `git` tool may act on path (empty path
// checks the tool's own enablement against the workspace root).
func CanUseGit(path string, perms *types.Permissions, workspace string) bool {
	if path == "" {
		path = workspace
	}
	return evaluate(path, workspace, specFor(perms, "git"))
}

// CanUseBash reports whether the `bash` tool may run in workspace.
func CanUseBash(perms *types.Permissions, workspace string) bool {
	return evaluate(workspace, workspace, specFor(perms, "bash"))
}

// CanUseBackground reports whether the `background` tool may run in
// workspace.
func CanUseBackground(perms *types.Permissions, workspace string) bool {
	return evaluate(workspace, workspace, specFor(perms, "background"))
}

// CanUseTodo reports whether a todo_* tool may operate in workspace.
func CanUseTodo(perms *types.Permissions, workspace string) bool {
	return evaluate(workspace, workspace, specFor(perms, "todo"))
}

// CanUseMemory reports whether a memory_* tool may operate in workspace.
func CanUseMemory(perms *types.Permissions, workspace string) bool {
	return evaluate(workspace, workspace, specFor(perms, "memory"))
}

// CanVisitURL reports whether `webfetch` may visit rawURL.
func CanVisitURL(rawURL string, perms *types.Permissions, workspace string) bool {
	spec := specFor(perms, "webfetch")
	if deniedURLSchemeHint.MatchString(rawURL) {
		return false
	}
	u, err := url.Parse(rawURL)
	if err == nil && u.Scheme != "" && !allowedURLSchemes[strings.ToLower(u.Scheme)] {
		return false
	}
	if matchesAnyUserRegex(spec.Deny, rawURL) {
		return false
	}
	if len(spec.Allow) == 0 {
		return true
	}
	return matchesAnyUserRegex(spec.Allow, rawURL)
}

// ShouldHideDirEntry reports whether an `ls`/`tree` entry should be
// hidden: dotfiles/dirs, and anything under the reserved `.agent` tree.
func ShouldHideDirEntry(name string) bool {
	if name == "." || name == ".." {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	return false
}

// GetRipgrepExcludeGlobs returns the prefixed exclusion list (spec.md
// §4.1): each base glob plus its `**/` variant. searchDir is not used; the
// list is the same for every search directory, and the globs are not
// rewritten relative to it.
func GetRipgrepExcludeGlobs(searchDir string) []string {
	bases := []string{".agent/**", "secrets/**", "agent.config.json", ".env*"}
	out := make([]string, 0, len(bases)*2)
	for _, b := range bases {
		out = append(out, "!"+b, "!**/"+b)
	}
	return out
}
