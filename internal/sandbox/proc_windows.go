//go:build windows

// File: internal/sandbox/proc_windows.go
package sandbox

import "os/exec"

// setProcAttrs is a no-op on Windows; CommandContext's default kill is the
// best available without job objects.
func setProcAttrs(cmd *exec.Cmd) {}

// withCPULimit cannot enforce a CPU rlimit on Windows; the wall-clock
// timeout remains the only ceiling.
func withCPULimit(argv []string, seconds int) []string { return argv }
