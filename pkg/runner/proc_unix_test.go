//go:build !windows

package runner

import "syscall"

// processAlive reports whether a process with the given pid still exists.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
