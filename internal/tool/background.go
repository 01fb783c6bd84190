package tool

import (
	"bufio"
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/internal/storage"
	"github.com/agentcore/agentcore/pkg/types"
)

// validSessionID matches spec.md §4.2.2's background session-id grammar.
var validSessionID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// backgroundSessionMeta is the JSON sidecar persisted at
// .agent/background/{sessionId}.json (spec.md §4.2.2 "state at
// .agent/background/{sessionId}.{json,log,cmd.sh,runner.sh}").
type backgroundSessionMeta struct {
	ID        string `json:"id"`
	Command   string `json:"command"`
	Cwd       string `json:"cwd"`
	StartedAt int64  `json:"startedAt"`
	Status    string `json:"status"` // "running" | "exited" | "killed"
}

func backgroundStore(workspace string) *storage.Storage {
	return storage.New(filepath.Join(workspace, ".agent", "background"))
}

func backgroundDir(workspace, id string) string {
	return filepath.Join(workspace, ".agent", "background")
}

func backgroundLogPath(workspace, id string) string {
	return filepath.Join(backgroundDir(workspace, id), id+".log")
}

func backgroundCmdPath(workspace, id string) string {
	return filepath.Join(backgroundDir(workspace, id), id+".cmd.sh")
}

func backgroundRunnerPath(workspace, id string) string {
	return filepath.Join(backgroundDir(workspace, id), id+".runner.sh")
}

// backgroundRunnerScript is the FIFO-based stdout/stderr demultiplexer each
// tmux session runs: it tees the wrapped command's two streams into the
// v1 TSV append-only log format spec.md §4.2.2 specifies
// (`v1\t{seq}\t{ts}\t{stdout|stderr|meta}\t{base64(text)}\n`).
//
// $1 = command file, $2 = log file
const backgroundRunnerScript = `#!/bin/sh
set -u
cmdfile="$1"
logfile="$2"
fifo_out=$(mktemp -u)
fifo_err=$(mktemp -u)
mkfifo "$fifo_out" "$fifo_err"
seq=0

pump() {
	kind="$1"
	pipe="$2"
	while IFS= read -r line; do
		ts=$(date +%s%3N)
		enc=$(printf '%s' "$line" | base64 | tr -d '\n')
		printf 'v1\t%s\t%s\t%s\t%s\n' "$seq" "$ts" "$kind" "$enc" >> "$logfile"
		seq=$((seq + 1))
	done < "$pipe"
}

pump stdout "$fifo_out" &
pump stderr "$fifo_err" &

sh "$cmdfile" >"$fifo_out" 2>"$fifo_err"
code=$?

wait
rm -f "$fifo_out" "$fifo_err"

ts=$(date +%s%3N)
enc=$(printf 'exit %s' "$code" | base64 | tr -d '\n')
printf 'v1\t%s\t%s\tmeta\t%s\n' "$seq" "$ts" "$enc" >> "$logfile"
`

type backgroundLogEvent struct {
	Seq  int
	At   int64
	Kind string
	Text string
}

// readLogEvents parses a v1 TSV log file, returning events at or after
// offset (a plain line-index offset, per spec.md §4.2.4 background cursors).
func readLogEvents(path string, offset int) ([]backgroundLogEvent, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}
		return nil, offset, err
	}
	defer f.Close()

	events := make([]backgroundLogEvent, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		idx := line
		line++
		if idx < offset {
			continue
		}
		fields := strings.SplitN(scanner.Text(), "\t", 5)
		if len(fields) != 5 || fields[0] != "v1" {
			continue
		}
		seq, _ := strconv.Atoi(fields[1])
		at, _ := strconv.ParseInt(fields[2], 10, 64)
		decoded, err := base64.StdEncoding.DecodeString(fields[4])
		text := fields[4]
		if err == nil {
			text = string(decoded)
		}
		events = append(events, backgroundLogEvent{Seq: seq, At: at, Kind: fields[3], Text: text})
	}
	return events, line, nil
}

// backgroundFactory implements `background {action: start|list|inspect|
// query_logs|capture_pane|send_keys|new_window|split_pane|kill,
// sessionId?, command?, cwd?, cursor?, ...}` (spec.md §4.2.2), a
// tmux-backed persistent-session manager that replaces the plain
// exec.Command process tracker bash's "once"/"normal" modes cover.
func backgroundFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Manage tmux-backed background sessions: start, inspect, tail logs, and interact with a persistent terminal.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}
			if !policy.CanUseBackground(permsOf(execCtx), workspace) {
				return errorField("Permission denied: background not allowed")
			}

			action, ok := stringArg(input, "action")
			if !ok || action == "" {
				return errorField("Invalid input")
			}

			// Actions that only read state degrade gracefully when tmux is
			// missing; actions that must talk to tmux fail outright.
			if action != "list" {
				if id, ok := stringArg(input, "sessionId"); ok && id != "" && !validSessionID.MatchString(id) {
					return errorField("Invalid sessionId")
				}
			}

			switch action {
			case "start":
				return backgroundStart(workspace, input)
			case "list":
				return backgroundList(workspace)
			case "inspect":
				return backgroundInspect(workspace, input)
			case "query_logs":
				return backgroundQueryLogs(workspace, input)
			case "capture_pane":
				return backgroundCapturePane(workspace, input)
			case "send_keys":
				return backgroundSendKeys(workspace, input)
			case "new_window":
				return backgroundNewWindow(workspace, input)
			case "split_pane":
				return backgroundSplitPane(workspace, input)
			case "kill":
				return backgroundKill(workspace, input)
			default:
				return errorField("Invalid input")
			}
		},
	}
}

func tmuxRun(args ...string) (string, error) {
	cmd := exec.Command("tmux", args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimRight(string(out), "\n"), err
}

// validateBackgroundCommand applies the same safety pipeline bash uses to
// any action that introduces a new shell command (start, send_keys).
func validateBackgroundCommand(workspace, cwd, command string) map[string]any {
	if policy.HasSensitivePathReference(command, workspace, cwd) {
		return errorField("Permission denied: command references a sensitive path")
	}
	if safety := policy.ValidateBashCommandSafety(command); !safety.OK {
		return errorSafety(safety)
	}
	return nil
}

func backgroundStart(workspace string, input map[string]any) map[string]any {
	command, ok := stringArg(input, "command")
	if !ok || command == "" {
		return errorField("Invalid input")
	}
	cwd, hasCwd := stringArg(input, "cwd")
	if !hasCwd || cwd == "" {
		cwd = workspace
	}
	if _, err := os.Stat(cwd); err != nil {
		return errorField("cwd does not exist")
	}
	if errRec := validateBackgroundCommand(workspace, cwd, command); errRec != nil {
		return errRec
	}
	if !tmuxAvailable() {
		return errorField("tmux is not available in runtime environment")
	}

	id := uuid.NewString()
	dir := backgroundDir(workspace, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errorFieldDetail("Failed to start background session", err.Error())
	}

	cmdPath := backgroundCmdPath(workspace, id)
	runnerPath := backgroundRunnerPath(workspace, id)
	logPath := backgroundLogPath(workspace, id)

	if err := os.WriteFile(cmdPath, []byte(command+"\n"), 0o755); err != nil {
		return errorFieldDetail("Failed to start background session", err.Error())
	}
	if err := os.WriteFile(runnerPath, []byte(backgroundRunnerScript), 0o755); err != nil {
		return errorFieldDetail("Failed to start background session", err.Error())
	}

	_, err := tmuxRun("new-session", "-d", "-s", id, "-c", cwd,
		"sh", runnerPath, cmdPath, logPath)
	if err != nil {
		return errorFieldDetail("Failed to start tmux session", err.Error())
	}

	meta := backgroundSessionMeta{
		ID: id, Command: command, Cwd: cwd,
		StartedAt: time.Now().UnixMilli(), Status: "running",
	}
	if err := backgroundStore(workspace).Put(context.Background(), []string{id}, meta); err != nil {
		return errorFieldDetail("Failed to persist background session", err.Error())
	}

	return map[string]any{"sessionId": id, "command": command, "cwd": cwd, "status": "running"}
}

func tmuxHasSession(id string) bool {
	_, err := tmuxRun("has-session", "-t", id)
	return err == nil
}

func backgroundLoadMeta(workspace, id string) (backgroundSessionMeta, error) {
	var meta backgroundSessionMeta
	err := backgroundStore(workspace).Get(context.Background(), []string{id}, &meta)
	return meta, err
}

func backgroundList(workspace string) map[string]any {
	ids, err := backgroundStore(workspace).List(context.Background(), []string{})
	if err != nil {
		return errorFieldDetail("Failed to list background sessions", err.Error())
	}
	sessions := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		meta, err := backgroundLoadMeta(workspace, id)
		if err != nil {
			continue
		}
		alive := tmuxAvailable() && tmuxHasSession(id)
		sessions = append(sessions, map[string]any{
			"sessionId": meta.ID, "command": meta.Command, "cwd": meta.Cwd,
			"startedAt": meta.StartedAt, "status": meta.Status, "alive": alive,
		})
	}
	return map[string]any{"sessions": sessions}
}

func backgroundInspect(workspace string, input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid input")
	}
	meta, err := backgroundLoadMeta(workspace, id)
	if err != nil {
		return errorField("Unknown background session")
	}

	result := map[string]any{
		"sessionId": meta.ID, "command": meta.Command, "cwd": meta.Cwd,
		"startedAt": meta.StartedAt, "status": meta.Status,
	}
	if modTime, err := backgroundStore(workspace).ModTime([]string{id}); err == nil {
		result["updatedAt"] = modTime.UnixMilli()
	}

	if !tmuxAvailable() {
		result["error"] = "tmux is not available in runtime environment"
		result["warning"] = "session status is based on last known state; live inspection is unavailable"
		return result
	}

	windows, err := tmuxRun("list-windows", "-t", id, "-F", "#{window_index}:#{window_name}")
	if err != nil {
		result["alive"] = false
		if meta.Status == "running" {
			result["status"] = "exited"
			meta.Status = "exited"
			_ = backgroundStore(workspace).Put(context.Background(), []string{id}, meta)
			result["status"] = "exited"
		}
		return result
	}
	result["alive"] = true
	wins := make([]string, 0)
	for _, l := range strings.Split(windows, "\n") {
		if l != "" {
			wins = append(wins, l)
		}
	}
	result["windows"] = wins
	return result
}

func backgroundQueryLogs(workspace string, input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid input")
	}
	if _, err := backgroundLoadMeta(workspace, id); err != nil {
		return errorField("Unknown background session")
	}

	offset := 0
	if c, hasCursor := stringArg(input, "cursor"); hasCursor && c != "" {
		decoded, err := DecodeBackgroundCursor(c)
		if err != nil {
			return errorField("Invalid cursor")
		}
		offset = decoded
	}

	events, nextOffset, err := readLogEvents(backgroundLogPath(workspace, id), offset)
	if err != nil {
		return errorFieldDetail("Failed to read background logs", err.Error())
	}
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{"seq": e.Seq, "at": e.At, "kind": e.Kind, "text": e.Text})
	}
	return map[string]any{
		"sessionId": id, "events": out, "cursor": EncodeBackgroundCursor(nextOffset),
	}
}

func backgroundCapturePane(workspace string, input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid input")
	}
	if _, err := backgroundLoadMeta(workspace, id); err != nil {
		return errorField("Unknown background session")
	}
	if !tmuxAvailable() {
		return map[string]any{"error": "tmux is not available in runtime environment", "warning": "pane capture is unavailable"}
	}
	args := []string{"capture-pane", "-p", "-t", id}
	if lines := intArg(input, "lines", 0); lines > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(lines))
	}
	out, err := tmuxRun(args...)
	if err != nil {
		return errorFieldDetail("Failed to capture pane", err.Error())
	}
	return map[string]any{"sessionId": id, "content": out}
}

func backgroundSendKeys(workspace string, input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid input")
	}
	keys, ok := stringArg(input, "keys")
	if !ok || keys == "" {
		return errorField("Invalid input")
	}
	meta, err := backgroundLoadMeta(workspace, id)
	if err != nil {
		return errorField("Unknown background session")
	}
	if errRec := validateBackgroundCommand(workspace, meta.Cwd, keys); errRec != nil {
		return errRec
	}
	if !tmuxAvailable() {
		return errorField("tmux is not available in runtime environment")
	}
	if !tmuxHasSession(id) {
		return errorField("background session has exited")
	}
	if _, err := tmuxRun("send-keys", "-t", id, keys, "Enter"); err != nil {
		return errorFieldDetail("Failed to send keys", err.Error())
	}
	return map[string]any{"sessionId": id, "sent": true}
}

func backgroundNewWindow(workspace string, input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid input")
	}
	meta, err := backgroundLoadMeta(workspace, id)
	if err != nil {
		return errorField("Unknown background session")
	}
	if !tmuxAvailable() {
		return errorField("tmux is not available in runtime environment")
	}
	if !tmuxHasSession(id) {
		return errorField("background session has exited")
	}

	args := []string{"new-window", "-t", id}
	if name, ok := stringArg(input, "name"); ok && name != "" {
		args = append(args, "-n", name)
	}
	cwd := meta.Cwd
	if c, ok := stringArg(input, "cwd"); ok && c != "" {
		cwd = c
	}
	args = append(args, "-c", cwd)
	if command, ok := stringArg(input, "command"); ok && command != "" {
		if errRec := validateBackgroundCommand(workspace, cwd, command); errRec != nil {
			return errRec
		}
		args = append(args, command)
	}
	out, err := tmuxRun(args...)
	if err != nil {
		return errorFieldDetail("Failed to create window", out)
	}
	return map[string]any{"sessionId": id, "created": true}
}

func backgroundSplitPane(workspace string, input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid input")
	}
	meta, err := backgroundLoadMeta(workspace, id)
	if err != nil {
		return errorField("Unknown background session")
	}
	if !tmuxAvailable() {
		return errorField("tmux is not available in runtime environment")
	}
	if !tmuxHasSession(id) {
		return errorField("background session has exited")
	}

	args := []string{"split-window", "-t", id}
	if boolArg(input, "horizontal", false) {
		args = append(args, "-h")
	} else {
		args = append(args, "-v")
	}
	cwd := meta.Cwd
	if c, ok := stringArg(input, "cwd"); ok && c != "" {
		cwd = c
	}
	args = append(args, "-c", cwd)
	if command, ok := stringArg(input, "command"); ok && command != "" {
		if errRec := validateBackgroundCommand(workspace, cwd, command); errRec != nil {
			return errRec
		}
		args = append(args, command)
	}
	out, err := tmuxRun(args...)
	if err != nil {
		return errorFieldDetail("Failed to split pane", out)
	}
	return map[string]any{"sessionId": id, "split": true}
}

// backgroundKill is idempotent like bash's normal-mode kill (spec.md §8
// property 10): a session already recorded as killed/exited reports
// "already_exited" without touching tmux again.
func backgroundKill(workspace string, input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid input")
	}
	meta, err := backgroundLoadMeta(workspace, id)
	if err != nil {
		return errorField("Unknown background session")
	}

	if meta.Status == "killed" || meta.Status == "exited" {
		return map[string]any{"sessionId": id, "status": "already_exited", "success": true}
	}

	if tmuxAvailable() && tmuxHasSession(id) {
		if _, err := tmuxRun("kill-session", "-t", id); err != nil {
			return errorFieldDetail("Failed to kill background session", err.Error())
		}
	}

	meta.Status = "killed"
	_ = backgroundStore(workspace).Put(context.Background(), []string{id}, meta)
	return map[string]any{"sessionId": id, "status": "killed", "success": true}
}
