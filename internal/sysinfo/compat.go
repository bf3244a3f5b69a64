package sysinfo

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// osReleasePath identifies the Linux distribution family.
const osReleasePath = "/etc/os-release"

// requiredTools are the package manager executables both install tiers need.
var requiredTools = []string{"dpkg", "apt"}

// CompatibilityProblems returns human-readable reasons why this host cannot
// install the kiosk package. An empty slice means the host is compatible.
// The checks are purely local: no network access, no subprocesses.
func CompatibilityProblems() []string {
	osRelease, err := os.ReadFile(osReleasePath)

	missing := make([]string, 0, len(requiredTools))

	for _, tool := range requiredTools {
		if _, lookErr := exec.LookPath(tool); lookErr != nil {
			missing = append(missing, tool)
		}
	}

	return compatibilityProblems(runtime.GOOS, runtime.GOARCH, string(osRelease), err, missing)
}

// compatibilityProblems is the decision core of CompatibilityProblems,
// split out so tests can feed it arbitrary host descriptions.
func compatibilityProblems(goos, goarch, osRelease string, osReleaseErr error, missingTools []string) []string {
	var problems []string

	if goos != "linux" {
		problems = append(problems, "This installer only works on Linux systems.")
	}

	switch {
	case osReleaseErr != nil:
		problems = append(problems, "Could not detect Linux distribution.")
	case !isDebianFamily(osRelease):
		problems = append(problems, "This package is designed for Debian/Ubuntu systems.")
	}

	if goarch != "amd64" {
		problems = append(problems,
			fmt.Sprintf("Unsupported architecture: %s. Only amd64/x86_64 is supported.", goarch))
	}

	for _, tool := range missingTools {
		problems = append(problems,
			fmt.Sprintf("%s not found. This installer requires %s.", tool, tool))
	}

	return problems
}

// isDebianFamily reports whether the os-release contents describe a
// Debian-derived distribution.
func isDebianFamily(osRelease string) bool {
	lowered := strings.ToLower(osRelease)

	return strings.Contains(lowered, "debian") || strings.Contains(lowered, "ubuntu")
}

// IsRoot reports whether the process runs with elevated privilege.
func IsRoot() bool {
	return os.Geteuid() == 0
}
