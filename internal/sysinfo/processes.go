package sysinfo

import (
	"github.com/mitchellh/go-ps"
)

// packageManagerProcesses are executables that hold the dpkg lock while
// running. Installing under any of them fails halfway through, so the
// pipeline refuses to start while one is active.
// Process names on Linux are truncated to 15 characters, hence the short
// form of unattended-upgrades.
var packageManagerProcesses = map[string]struct{}{
	"apt":             {},
	"apt-get":         {},
	"aptitude":        {},
	"dpkg":            {},
	"unattended-upgr": {},
}

// BusyPackageManagers scans the process table and returns the names of
// running package manager processes, deduplicated. An empty result means
// the package database is free to use.
func BusyPackageManagers() ([]string, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	return busyAmong(processList), nil
}

// busyAmong filters a process list down to the watched package manager
// executables, each name reported at most once.
func busyAmong(processList []ps.Process) []string {
	seen := make(map[string]struct{}, len(packageManagerProcesses))

	var busy []string

	for _, process := range processList {
		name := process.Executable()
		if _, watched := packageManagerProcesses[name]; !watched {
			continue
		}

		if _, duplicate := seen[name]; duplicate {
			continue
		}

		seen[name] = struct{}{}
		busy = append(busy, name)
	}

	return busy
}
