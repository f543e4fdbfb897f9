package runner

import (
	"path/filepath"

	"github.com/forgeworks-io/crossrun/pkg/platform"
)

// BinaryPath resolves the on-disk location of the prebuilt binary matching
// the current host: ⟨base⟩/⟨os⟩-⟨arch⟩/⟨cmd⟩, with ".exe" on windows.
// An unsupported host is an explicit error.
func BinaryPath(base, cmd string) (string, error) {
	host, err := platform.Host()
	if err != nil {
		return "", err
	}
	return pathFor(base, host, cmd), nil
}

func pathFor(base string, target platform.Target, cmd string) string {
	return filepath.Join(base, target.String(), target.BinaryName(cmd))
}
