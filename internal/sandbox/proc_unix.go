//go:build !windows

// File: internal/sandbox/proc_unix.go
package sandbox

import (
	"fmt"
	"os/exec"
	"syscall"
)

// setProcAttrs places the child in its own process group so a timeout or
// cancellation tears down the whole tree, not just the direct child.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid signals the process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// withCPULimit caps the step's CPU time with the shell's ulimit builtin.
// The rlimit is inherited by the exec'd command and its children. Best
// effort; a shell without the builtin still runs the command unbounded.
func withCPULimit(argv []string, seconds int) []string {
	if seconds <= 0 {
		return argv
	}
	script := fmt.Sprintf("ulimit -t %d 2>/dev/null; exec \"$@\"", seconds)
	return append([]string{"sh", "-c", script, "sh"}, argv...)
}
