package tool

import (
	"os/exec"
	"sync"
)

// Process-wide availability caches for the external binaries the
// subprocess tools shell out to (spec.md §5 "Global mutable state":
// "optional availability caches for bash and tmux binaries (bool|null)
// are process-wide; their lifecycle is init-on-first-check and
// reset-on-test-hook"). nil means "not yet probed".
var (
	bashAvailMu sync.Mutex
	bashAvail   *bool

	tmuxAvailMu sync.Mutex
	tmuxAvail   *bool
)

// bashAvailable reports whether a POSIX shell is on PATH.
func bashAvailable() bool {
	bashAvailMu.Lock()
	defer bashAvailMu.Unlock()
	if bashAvail == nil {
		_, err := exec.LookPath("sh")
		ok := err == nil
		bashAvail = &ok
	}
	return *bashAvail
}

// tmuxAvailable reports whether tmux is on PATH.
func tmuxAvailable() bool {
	tmuxAvailMu.Lock()
	defer tmuxAvailMu.Unlock()
	if tmuxAvail == nil {
		_, err := exec.LookPath("tmux")
		ok := err == nil
		tmuxAvail = &ok
	}
	return *tmuxAvail
}

// ResetAvailabilityCachesForTest clears both process-wide availability
// caches so tests can exercise both the "binary present" and "binary
// missing" code paths regardless of probe order. Production code never
// calls this.
func ResetAvailabilityCachesForTest() {
	bashAvailMu.Lock()
	bashAvail = nil
	bashAvailMu.Unlock()
	tmuxAvailMu.Lock()
	tmuxAvail = nil
	tmuxAvailMu.Unlock()
}
