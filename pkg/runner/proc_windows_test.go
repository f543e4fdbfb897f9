//go:build windows

package runner

import "os"

// processAlive reports whether a process with the given pid still exists.
// Windows has no kill(pid, 0); FindProcess failing is good enough here.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
