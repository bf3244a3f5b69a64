package sysinfo

import (
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid        int
	executable string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.executable }

func processListOf(names ...string) []ps.Process {
	list := make([]ps.Process, 0, len(names))
	for i, name := range names {
		list = append(list, fakeProcess{pid: 100 + i, executable: name})
	}

	return list
}

func TestBusyAmong_ReportsOnlyPackageManagers(t *testing.T) {
	t.Parallel()

	busy := busyAmong(processListOf(
		"systemd", "apt", "bash", "dpkg", "sshd", "unattended-upgr",
	))

	require.ElementsMatch(t, []string{"apt", "dpkg", "unattended-upgr"}, busy)
}

func TestBusyAmong_IgnoresUnrelatedProcesses(t *testing.T) {
	t.Parallel()

	busy := busyAmong(processListOf("systemd", "bash", "apt-cacher", "dpkg-query"))

	require.Empty(t, busy)
}

func TestBusyAmong_CollapsesDuplicates(t *testing.T) {
	t.Parallel()

	busy := busyAmong(processListOf("apt-get", "apt-get", "apt-get", "dpkg", "dpkg"))

	require.Equal(t, []string{"apt-get", "dpkg"}, busy)
}
