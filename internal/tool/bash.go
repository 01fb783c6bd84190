package tool

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

const (
	defaultBashTimeout     = 120 * time.Second
	maxBashTimeout         = 600 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	idleTimeoutKillGrace   = 1 * time.Second
	normalBashSessionLimit = 10000 // defensive cap on retained events per session
)

// bashFactory implements `bash {action: start|query|kill, mode:
// once|normal|background, command?, cwd?, sessionId?, cursor?,
// timeoutMs?, idleTimeoutMs?}` (spec.md §4.2.2).
//
//   - mode "once" runs the command to completion and returns captured
//     stdout/stderr/exitCode/duration.
//   - mode "normal" tracks a long-lived process in memory: action
//     "start" returns immediately with a running session id, "query"
//     returns new events after a cursor plus terminal status when
//     applicable, "kill" is idempotent.
//   - mode "background" returns a typed migration error pointing the
//     caller at the `background` tool, which owns tmux-backed sessions.
func bashFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Run a shell command in the workspace (once, or as a tracked long-lived session).",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			mode, _ := stringArg(input, "mode")
			if mode == "" {
				mode = "once"
			}
			action, _ := stringArg(input, "action")
			if action == "" {
				action = "start"
			}

			if mode == "background" {
				return bashBackgroundMigrationError()
			}

			workspace := ""
			if execCtx != nil {
				workspace = execCtx.Workspace
			}

			switch mode {
			case "once":
				if action != "start" {
					return errorField("Invalid input")
				}
				return bashRunOnce(execCtx, workspace, input)
			case "normal":
				switch action {
				case "start":
					return bashNormalStart(execCtx, workspace, input)
				case "query":
					return bashNormalQuery(input)
				case "kill":
					return bashNormalKill(input)
				default:
					return errorField("Invalid input")
				}
			default:
				return errorField("Invalid input")
			}
		},
	}
}

// bashBackgroundMigrationError is the typed migration error spec.md
// §4.2.2 requires when a caller still asks bash for `mode: "background"`.
func bashBackgroundMigrationError() map[string]any {
	return map[string]any{
		"error": "bash mode \"background\" has moved to the background tool",
		"tool":  "background",
	}
}

// validateBashCommand runs the shared safety pipeline for both "once" and
// "normal start" invocations: CanUseBash, HasSensitivePathReference,
// ValidateBashCommandSafety, and per-path checks for any dangerous
// subcommand the parser finds. Returns nil when the command is allowed.
func validateBashCommand(execCtx *types.ToolExecutionContext, workspace, cwd, command string) map[string]any {
	if !policy.CanUseBash(permsOf(execCtx), workspace) {
		return errorField("Permission denied: bash not allowed")
	}
	if policy.HasSensitivePathReference(command, workspace, cwd) {
		return errorField("Permission denied: command references a sensitive path")
	}
	if safety := policy.ValidateBashCommandSafety(command); !safety.OK {
		return errorSafety(safety)
	}
	if parsed, err := policy.ParseBashCommand(command); err == nil {
		for _, c := range parsed {
			if !policy.IsDangerousCommand(c.Name) {
				continue
			}
			for _, p := range policy.ExtractPaths(c) {
				resolved, rerr := policy.ResolvePath(context.Background(), p, cwd)
				if rerr != nil {
					resolved = p
				}
				if !policy.CanWriteFile(resolved, permsOf(execCtx), workspace) {
					return errorField("Permission denied: bash path not allowed")
				}
			}
		}
	}
	return nil
}

// errorSafety builds the Safety error record spec.md §7 specifies:
// {error:"Command blocked by builtin safety policy", ruleId, detail}.
func errorSafety(safety policy.SafetyResult) map[string]any {
	return map[string]any{
		"error":  "Command blocked by builtin safety policy",
		"ruleId": safety.RuleID,
		"detail": safety.Message,
	}
}

func bashRunOnce(execCtx *types.ToolExecutionContext, workspace string, input map[string]any) map[string]any {
	command, ok := stringArg(input, "command")
	if !ok || command == "" {
		return errorField("Invalid input")
	}
	cwd, hasCwd := stringArg(input, "cwd")
	if !hasCwd || cwd == "" {
		cwd = workspace
	}

	if errRec := validateBashCommand(execCtx, workspace, cwd, command); errRec != nil {
		return errRec
	}
	if !bashAvailable() {
		return errorField("bash command is not available in runtime environment")
	}

	timeout := defaultBashTimeout
	if ms := intArg(input, "timeoutMs", 0); ms > 0 {
		requested := time.Duration(ms) * time.Millisecond
		if requested < maxBashTimeout {
			timeout = requested
		} else {
			timeout = maxBashTimeout
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)
	timedOut := ctx.Err() == context.DeadlineExceeded

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if !timedOut {
			return errorFieldDetail("Failed to run command", err.Error())
		}
	}

	return map[string]any{
		"stdout":     stdout.String(),
		"stderr":     stderr.String(),
		"exitCode":   exitCode,
		"timedOut":   timedOut,
		"durationMs": duration.Milliseconds(),
	}
}

// bashEvent is one stdout/stderr line or lifecycle marker recorded for a
// `mode: "normal"` session, addressable by a monotone per-session Seq
// (spec.md §4.2.4).
type bashEvent struct {
	Seq  int
	Kind string // "stdout" | "stderr" | "meta"
	Text string
	At   int64 // epoch ms
}

// bashNormalSession is the in-memory handle for one tracked long-lived
// process (spec.md §4.2.2 "normal spawns a long-lived process tracked in
// memory"; §5 "the process-wide `normal` bash session map, accessed
// under a single writer lock").
type bashNormalSession struct {
	mu          sync.Mutex
	id          string
	command     string
	cwd         string
	cmd         *exec.Cmd
	events      []bashEvent
	status      string // "running" | "idle_timeout" | "killed" | "exited"
	exitCode    *int
	startedAt   time.Time
	idleTimeout time.Duration
	idleTimer   *time.Timer
}

var (
	normalBashMu       sync.Mutex
	normalBashSessions = map[string]*bashNormalSession{}
)

func registerNormalBashSession(s *bashNormalSession) {
	normalBashMu.Lock()
	normalBashSessions[s.id] = s
	normalBashMu.Unlock()
}

func lookupNormalBashSession(id string) (*bashNormalSession, bool) {
	normalBashMu.Lock()
	defer normalBashMu.Unlock()
	s, ok := normalBashSessions[id]
	return s, ok
}

func (s *bashNormalSession) appendEventLocked(kind, text string) {
	if len(s.events) >= normalBashSessionLimit {
		return
	}
	s.events = append(s.events, bashEvent{Seq: len(s.events), Kind: kind, Text: text, At: time.Now().UnixMilli()})
}

func (s *bashNormalSession) appendEvent(kind, text string) {
	s.mu.Lock()
	s.appendEventLocked(kind, text)
	s.mu.Unlock()
	s.resetIdleTimer()
}

func (s *bashNormalSession) armIdleTimer() {
	s.mu.Lock()
	s.idleTimer = time.AfterFunc(s.idleTimeout, s.onIdleTimeout)
	s.mu.Unlock()
}

func (s *bashNormalSession) resetIdleTimer() {
	s.mu.Lock()
	if s.idleTimer != nil {
		s.idleTimer.Reset(s.idleTimeout)
	}
	s.mu.Unlock()
}

// onIdleTimeout implements the §5 idle-timeout state machine: running ->
// idle_timeout -> killed, SIGTERM then SIGKILL after a 1s grace period.
func (s *bashNormalSession) onIdleTimeout() {
	s.mu.Lock()
	if s.status != "running" {
		s.mu.Unlock()
		return
	}
	s.status = "idle_timeout"
	s.appendEventLocked("meta", "idle timeout exceeded")
	pid := s.cmd.Process.Pid
	s.mu.Unlock()

	signalProcessGroup(pid, syscall.SIGTERM)
	time.AfterFunc(idleTimeoutKillGrace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status == "idle_timeout" {
			signalProcessGroup(pid, syscall.SIGKILL)
			s.status = "killed"
			s.appendEventLocked("meta", "killed after idle timeout")
		}
	})
}

// kill is the idempotent `action: "kill"` handler (spec.md §8 property
// 10): the first call on a still-running session transitions it to
// "killed" and signals the process group; every subsequent call observes
// the terminal status and reports "already_exited", both with
// success:true.
func (s *bashNormalSession) kill() map[string]any {
	s.mu.Lock()
	if s.status == "killed" || s.status == "exited" {
		s.mu.Unlock()
		return map[string]any{"sessionId": s.id, "status": "already_exited", "success": true}
	}
	pid := s.cmd.Process.Pid
	s.status = "killed"
	s.appendEventLocked("meta", "killed by request")
	s.mu.Unlock()

	signalProcessGroup(pid, syscall.SIGTERM)
	time.AfterFunc(idleTimeoutKillGrace, func() { signalProcessGroup(pid, syscall.SIGKILL) })

	return map[string]any{"sessionId": s.id, "status": "killed", "success": true}
}

func (s *bashNormalSession) pump(r io.Reader, kind string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.appendEvent(kind, scanner.Text())
	}
}

func (s *bashNormalSession) awaitExit() {
	err := s.cmd.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	if s.status == "killed" {
		return
	}
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	s.status = "exited"
	s.exitCode = &code
	s.appendEventLocked("meta", fmt.Sprintf("exited with code %d", code))
}

// signalProcessGroup signals the whole process group a `normal` session's
// shell belongs to (it is always started with Setpgid), falling back to
// signaling the lone process if the group lookup fails.
func signalProcessGroup(pid int, sig syscall.Signal) {
	if pgid, err := syscall.Getpgid(pid); err == nil {
		_ = syscall.Kill(-pgid, sig)
		return
	}
	_ = syscall.Kill(pid, sig)
}

func bashNormalStart(execCtx *types.ToolExecutionContext, workspace string, input map[string]any) map[string]any {
	command, ok := stringArg(input, "command")
	if !ok || command == "" {
		return errorField("Invalid input")
	}
	cwd, hasCwd := stringArg(input, "cwd")
	if !hasCwd || cwd == "" {
		cwd = workspace
	}

	if errRec := validateBashCommand(execCtx, workspace, cwd, command); errRec != nil {
		return errRec
	}
	if !bashAvailable() {
		return errorField("bash command is not available in runtime environment")
	}

	idleTimeout := defaultIdleTimeout
	if ms := intArg(input, "idleTimeoutMs", 0); ms > 0 {
		idleTimeout = time.Duration(ms) * time.Millisecond
	}

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = cwd
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errorFieldDetail("Failed to start command", err.Error())
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errorFieldDetail("Failed to start command", err.Error())
	}
	if err := cmd.Start(); err != nil {
		return errorFieldDetail("Failed to start command", err.Error())
	}

	sess := &bashNormalSession{
		id:          ulid.Make().String(),
		command:     command,
		cwd:         cwd,
		cmd:         cmd,
		status:      "running",
		startedAt:   time.Now(),
		idleTimeout: idleTimeout,
	}
	sess.appendEvent("meta", "session started")
	sess.armIdleTimer()
	registerNormalBashSession(sess)

	go sess.pump(stdout, "stdout")
	go sess.pump(stderr, "stderr")
	go sess.awaitExit()

	return map[string]any{"sessionId": sess.id, "status": "running", "command": command, "cwd": cwd}
}

func bashNormalQuery(input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid sessionId")
	}
	sess, ok := lookupNormalBashSession(id)
	if !ok {
		return errorField("Unknown bash session")
	}

	seq := 0
	if c, hasCursor := stringArg(input, "cursor"); hasCursor && c != "" {
		decoded, err := DecodeNormalCursor(c)
		if err != nil {
			return errorField("Invalid cursor")
		}
		seq = decoded
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	events := make([]map[string]any, 0)
	for _, e := range sess.events {
		if e.Seq < seq {
			continue
		}
		events = append(events, map[string]any{"seq": e.Seq, "kind": e.Kind, "text": e.Text, "at": e.At})
	}
	result := map[string]any{
		"sessionId": sess.id,
		"events":    events,
		"cursor":    EncodeNormalCursor(len(sess.events)),
		"status":    sess.status,
		"done":      sess.status == "exited" || sess.status == "killed",
	}
	if sess.exitCode != nil {
		result["exitCode"] = *sess.exitCode
	}
	return result
}

func bashNormalKill(input map[string]any) map[string]any {
	id, ok := stringArg(input, "sessionId")
	if !ok || id == "" {
		return errorField("Invalid sessionId")
	}
	sess, ok := lookupNormalBashSession(id)
	if !ok {
		return errorField("Unknown bash session")
	}
	return sess.kill()
}
