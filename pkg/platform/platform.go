// Package platform enumerates the OS/architecture combinations the build
// matrix supports and maps the running host onto one of them.
package platform

import (
	"fmt"
	"runtime"
)

// OS is an operating-system family, named with the toolchain's identifier.
type OS string

// Arch is a CPU architecture, named with the toolchain's identifier.
type Arch string

const (
	Darwin  OS = "darwin"
	FreeBSD OS = "freebsd"
	Linux   OS = "linux"
	Windows OS = "windows"
)

const (
	I386     Arch = "386"
	AMD64    Arch = "amd64"
	ARM      Arch = "arm"
	ARM64    Arch = "arm64"
	MIPS64LE Arch = "mips64le"
	PPC64    Arch = "ppc64"
)

// Enumeration order here is the build order: OS-major, arch-minor.
var (
	oses   = []OS{Darwin, FreeBSD, Linux, Windows}
	arches = []Arch{I386, AMD64, ARM, ARM64, MIPS64LE, PPC64}
)

// exclusions lists the architectures that must never be built for an OS
// family. Linux has no exclusions.
var exclusions = map[OS][]Arch{
	Darwin:  {I386, ARM, MIPS64LE, PPC64},
	FreeBSD: {I386, ARM, MIPS64LE, PPC64},
	Windows: {ARM, ARM64, MIPS64LE, PPC64},
}

// Target is one (OS family, CPU architecture) pair the compiler is asked to
// produce an executable for.
type Target struct {
	OS   OS
	Arch Arch
}

// String returns the canonical "os-arch" form used for artifact directories.
func (t Target) String() string {
	return fmt.Sprintf("%s-%s", t.OS, t.Arch)
}

// BinaryName returns the artifact filename for this target. Windows targets
// carry an ".exe" suffix, all others never do.
func (t Target) BinaryName(name string) string {
	if t.OS == Windows {
		return name + ".exe"
	}
	return name
}

// Excluded reports whether the combination is ruled out of the build matrix.
func Excluded(os OS, arch Arch) bool {
	for _, a := range exclusions[os] {
		if a == arch {
			return true
		}
	}
	return false
}

// Targets returns every valid target of the build matrix, in declared
// enumeration order.
func Targets() []Target {
	var targets []Target
	for _, os := range oses {
		for _, arch := range arches {
			if Excluded(os, arch) {
				continue
			}
			targets = append(targets, Target{OS: os, Arch: arch})
		}
	}
	return targets
}

// Host maps the running host onto its build target. A host whose OS or
// architecture is absent from the matrix is an explicit error, never an
// undefined target string.
func Host() (Target, error) {
	return hostTarget(runtime.GOOS, runtime.GOARCH)
}

func hostTarget(goos, goarch string) (Target, error) {
	var (
		os    OS
		arch  Arch
		known bool
	)
	for _, o := range oses {
		if string(o) == goos {
			os, known = o, true
			break
		}
	}
	if !known {
		return Target{}, NewUnsupportedHostError(goos, goarch)
	}
	known = false
	for _, a := range arches {
		if string(a) == goarch {
			arch, known = a, true
			break
		}
	}
	if !known || Excluded(os, arch) {
		return Target{}, NewUnsupportedHostError(goos, goarch)
	}
	return Target{OS: os, Arch: arch}, nil
}
