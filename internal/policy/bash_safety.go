package policy

import (
	"context"
	"regexp"
	"strings"
)

// SafetyResult is the outcome of validateBashCommandSafety (spec.md
// §4.2.2, §7): either {ok:true} or {ok:false, ruleId, message}.
type SafetyResult struct {
	OK      bool
	RuleID  string
	Message string
}

var rmRfRootVariants = []string{
	"rm -rf /", "rm -fr /", "rm -r -f /", "rm -f -r /", "rm --recursive --force /",
}

var mkfsBlockDevice = regexp.MustCompile(`^mkfs\.\w+$`)

func isDangerousSubcommand(name string, args []string) (bool, string) {
	joined := strings.TrimSpace(name + " " + strings.Join(args, " "))
	for _, v := range rmRfRootVariants {
		if joined == v || strings.HasPrefix(joined, v+" ") {
			return true, "rm_rf_root"
		}
	}
	if name == "shutdown" {
		return true, "shutdown"
	}
	if name == "reboot" {
		return true, "reboot"
	}
	if mkfsBlockDevice.MatchString(name) {
		for _, a := range args {
			if strings.HasPrefix(a, "/dev/") {
				return true, "mkfs_block_device"
			}
		}
	}
	return false, ""
}

// ValidateBashCommandSafety blocks: `rm -rf /` and common aliases; any
// compound where a dangerous subcommand appears after `&&`, `||`, `;`, or
// `|`; and `sudo <dangerous>`.
func ValidateBashCommandSafety(command string) SafetyResult {
	trimmed := strings.TrimSpace(command)
	for _, v := range rmRfRootVariants {
		if trimmed == v || strings.HasPrefix(trimmed, v+" ") {
			return SafetyResult{OK: false, RuleID: "rm_rf_root", Message: "Command blocked by builtin safety policy"}
		}
	}

	commands, err := ParseBashCommand(command)
	if err != nil {
		// Unparsable input is not itself unsafe; the command will fail
		// on its own when executed. Safety only blocks recognized
		// dangerous shapes.
		return SafetyResult{OK: true}
	}

	for _, cmd := range commands {
		name := cmd.Name
		args := cmd.Args
		if name == "sudo" {
			if len(args) == 0 {
				continue
			}
			name = args[0]
			args = args[1:]
		}
		if dangerous, ruleID := isDangerousSubcommand(name, args); dangerous {
			return SafetyResult{OK: false, RuleID: ruleID, Message: "Command blocked by builtin safety policy"}
		}
	}
	return SafetyResult{OK: true}
}

// sensitive basenames/dirs scanned for in free-form text, mirroring the
// Sensitive workspace path glossary entry.
var sensitiveTokens = []string{".agent", "secrets", "agent.config.json", ".env"}

// HasSensitivePathReference performs textual detection of both absolute
// references to sensitive workspace files/dirs and relative forms rooted
// at cwd (including `..`-traversal), per spec.md §4.1.
func HasSensitivePathReference(text, workspace, cwd string) bool {
	fields := splitCommandLikeText(text)
	for _, f := range fields {
		if candidateReferencesSensitivePath(f, workspace, cwd) {
			return true
		}
	}
	// Also scan the raw text for bare sensitive basenames even when not
	// isolated as a distinct token (e.g. embedded in a quoted string).
	lower := text
	for _, tok := range sensitiveTokens {
		if strings.Contains(lower, tok) {
			if candidateReferencesSensitivePath(extractAround(lower, tok), workspace, cwd) {
				return true
			}
		}
	}
	return false
}

func splitCommandLikeText(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ';', '|', '&', '(', ')', '\'', '"':
			return true
		}
		return false
	})
}

func extractAround(text, token string) string {
	idx := strings.Index(text, token)
	if idx < 0 {
		return token
	}
	start := idx
	for start > 0 && text[start-1] != ' ' && text[start-1] != '\t' && text[start-1] != '"' && text[start-1] != '\'' {
		start--
	}
	end := idx + len(token)
	for end < len(text) && text[end] != ' ' && text[end] != '\t' && text[end] != '"' && text[end] != '\'' {
		end++
	}
	return text[start:end]
}

func candidateReferencesSensitivePath(field, workspace, cwd string) bool {
	if field == "" {
		return false
	}
	hasSensitiveToken := false
	for _, tok := range sensitiveTokens {
		if strings.Contains(field, tok) {
			hasSensitiveToken = true
			break
		}
	}
	if !hasSensitiveToken {
		return false
	}
	resolved, err := ResolvePath(context.Background(), field, cwd)
	if err != nil {
		resolved = field
	}
	if workspace != "" {
		rel := relativeToWorkspace(resolved, workspace)
		if isSensitiveWorkspacePath(rel) {
			return true
		}
	}
	// Relative form rooted at cwd, including traversal outside workspace
	// that still lands on a sensitive basename.
	for _, tok := range sensitiveTokens {
		if strings.HasSuffix(resolved, "/"+tok) || strings.Contains(resolved, "/"+tok+"/") {
			return true
		}
	}
	return false
}
