package installer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
)

// InstallError reports a failed installation together with the captured
// output of the failing step, so a human can diagnose without re-running.
type InstallError struct {
	// Step names the command sequence that failed.
	Step string
	// Output is the captured combined output of the failing step.
	Output string
	// Err is the underlying subprocess error.
	Err error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	return fmt.Sprintf("installation failed at %s: %v", e.Step, e.Err)
}

// Unwrap exposes the underlying subprocess error.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// DebInstaller installs a local .deb file through the system package
// manager. The command names are fields so tests can substitute fakes;
// production values are the defaults from NewDebInstaller.
type DebInstaller struct {
	// Sudo is the privilege escalation wrapper prepended to every command.
	// Empty means run the tools directly.
	Sudo string
	// Apt is the high-level package manager executable.
	Apt string
	// Dpkg is the low-level package tool executable.
	Dpkg string
}

// NewDebInstaller returns an installer wired to the real system tools.
func NewDebInstaller() *DebInstaller {
	return &DebInstaller{
		Sudo: "sudo",
		Apt:  "apt",
		Dpkg: "dpkg",
	}
}

// Install installs the package at packagePath, streaming live status lines
// to onStatus. Two tiers are tried in order:
//
//  1. `apt install -y <file>`, which resolves dependencies automatically;
//     its combined output is forwarded line by line as it is produced.
//  2. `dpkg -i <file>` followed by `apt install -f -y`, which force-installs
//     and then reconciles dependencies.
//
// A non-zero exit of tier 1 is not fatal; a non-zero exit of either tier 2
// step fails the whole operation with *InstallError. The returned string is
// the full captured output of everything that ran, success or failure.
// Neither tier is bounded by a timeout: dependency installation may
// legitimately run for a long time.
func (d *DebInstaller) Install(ctx context.Context, packagePath string, onStatus func(line string)) (string, error) {
	if onStatus == nil {
		onStatus = func(string) {}
	}

	onStatus("Installing dependencies...")

	var captured strings.Builder

	name, args := d.command(d.Apt, "install", "-y", packagePath)

	primaryOutput, err := runStreaming(ctx, onStatus, name, args...)
	captured.WriteString(primaryOutput)

	if err == nil {
		return captured.String(), nil
	}

	logger.WarnKV(ctx, "Primary install path failed, falling back to dpkg", "error", err)
	onStatus("Trying alternative installation method...")

	name, args = d.command(d.Dpkg, "-i", packagePath)

	output, err := runCaptured(ctx, name, args...)
	captured.WriteString(output)

	if err != nil {
		return captured.String(), newInstallError("dpkg -i", output, err)
	}

	name, args = d.command(d.Apt, "install", "-f", "-y")

	output, err = runCaptured(ctx, name, args...)
	captured.WriteString(output)

	if err != nil {
		return captured.String(), newInstallError("apt install -f", output, err)
	}

	return captured.String(), nil
}

// newInstallError builds an InstallError whose Output is never empty.
func newInstallError(step, output string, err error) *InstallError {
	if strings.TrimSpace(output) == "" {
		output = err.Error()
	}

	return &InstallError{
		Step:   step,
		Output: output,
		Err:    err,
	}
}

// command prepends the escalation wrapper when one is configured.
func (d *DebInstaller) command(tool string, args ...string) (string, []string) {
	if d.Sudo == "" {
		return tool, args
	}

	return d.Sudo, append([]string{tool}, args...)
}

const (
	initialScanBufferSize = 64 * 1024
	maxScanLineSize       = 1024 * 1024
)

// runStreaming executes a command with combined stdout/stderr, forwarding
// each line to onStatus as it is produced and returning the full output.
func runStreaming(ctx context.Context, onStatus func(string), name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	pipeReader, pipeWriter := io.Pipe()
	cmd.Stdout = pipeWriter
	cmd.Stderr = pipeWriter

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", name, err)
	}

	waitResult := make(chan error, 1)

	go func() {
		err := cmd.Wait()
		_ = pipeWriter.Close()
		waitResult <- err
	}()

	var output strings.Builder

	// apt can emit very long single lines; a default-sized scanner would
	// stop reading on one and leave the writer side of the pipe blocked.
	scanner := bufio.NewScanner(pipeReader)
	scanner.Buffer(make([]byte, initialScanBufferSize), maxScanLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		output.WriteString(line)
		output.WriteByte('\n')
		onStatus(line)
	}

	if scanErr := scanner.Err(); scanErr != nil {
		// Unblock the subprocess copy goroutine so Wait can return.
		_ = pipeReader.CloseWithError(scanErr)
	}

	return output.String(), <-waitResult
}

// runCaptured executes a command and returns its combined output.
func runCaptured(ctx context.Context, name string, args ...string) (string, error) {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()

	return string(output), err
}
