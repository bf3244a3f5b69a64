package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/brasco123/kdg-kiosk-installer/internal/config"
	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
	"github.com/brasco123/kdg-kiosk-installer/internal/service/installer"
)

// headerWidth is the width of the banner rule lines.
const headerWidth = 60

// Frontend renders pipeline progress on a terminal. It implements
// installer.Callbacks and may run the pipeline on its own goroutine,
// blocking until completion; terminals have no event loop to starve.
type Frontend struct {
	out io.Writer
	in  io.Reader

	bar *progressbar.ProgressBar
}

// New creates a terminal front end bound to stdout/stdin.
func New() *Frontend {
	return &Frontend{
		out: os.Stdout,
		in:  os.Stdin,
	}
}

// Run executes the installation pipeline and renders it. The returned
// exit code is 0 on success (including a declined wizard) and 1 on any
// pipeline failure.
func (f *Frontend) Run(ctx context.Context, service *installer.Service, requestedVersion string, cfg *config.Config) int {
	f.printHeader()

	outcome, err := service.Run(ctx, requestedVersion, f)
	f.finishBar()

	if err != nil {
		fmt.Fprintf(f.out, "\n❌ %v\n", err)

		if outcome.Failure == installer.FailureInstall && outcome.Log != "" {
			fmt.Fprintf(f.out, "\nInstaller output:\n%s\n", outcome.Log)
		}

		return 1
	}

	fmt.Fprintf(f.out, "\n✅ Installation completed successfully!\n\n")
	fmt.Fprintln(f.out, strings.Repeat("=", headerWidth))

	if f.askYesNo("\nWould you like to run the setup wizard now? [Y/n]: ") {
		fmt.Fprintf(f.out, "\n🚀 Launching setup wizard...\n")

		if err := installer.LaunchWizard(ctx, cfg.WizardPath); err != nil {
			// Installation already succeeded; a missing wizard is only a warning.
			fmt.Fprintf(f.out, "⚠️  Could not launch setup wizard: %v\n", err)
			fmt.Fprintln(f.out, "   You can run it manually with: kdg-kiosk-setup")
			logger.WarnKV(ctx, "Could not launch setup wizard", "error", err)
		}
	}

	return 0
}

// OnStage prints a banner per pipeline stage.
func (f *Frontend) OnStage(stage installer.Stage) {
	// The download bar must not swallow the install banner.
	if stage == installer.StageInstalling {
		f.finishBar()
	}

	switch stage {
	case installer.StageCheckingCompatibility:
		fmt.Fprintf(f.out, "⚙️  %s...\n", stage)
	case installer.StageResolvingRelease:
		fmt.Fprintf(f.out, "📡 %s...\n", stage)
	case installer.StageSelectingAsset:
		fmt.Fprintf(f.out, "🔍 %s...\n", stage)
	case installer.StageDownloading:
		fmt.Fprintf(f.out, "⬇️  %s...\n", stage)
	case installer.StageInstalling:
		fmt.Fprintf(f.out, "📦 %s...\n", stage)
	case installer.StageSucceeded, installer.StageCheckingPrivilege, installer.StageIdle:
		// Privilege check is silent unless it fails; success prints in Run.
	}
}

// OnDetail prints an indented informational line.
func (f *Frontend) OnDetail(message string) {
	fmt.Fprintf(f.out, "   %s\n", message)
}

// OnDownloadProgress feeds the byte-level progress bar, creating it on the
// first report once the total size is known.
func (f *Frontend) OnDownloadProgress(_ int, downloaded, total int64) {
	if f.bar == nil {
		f.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(f.out),
			progressbar.OptionSetDescription("   Progress:"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
	}

	_ = f.bar.Set64(downloaded)
}

// OnInstallStatus prints one live package manager output line, indented.
func (f *Frontend) OnInstallStatus(line string) {
	fmt.Fprintf(f.out, "   %s\n", line)
}

// finishBar closes the progress bar if one was started.
func (f *Frontend) finishBar() {
	if f.bar == nil {
		return
	}

	_ = f.bar.Finish()
	f.bar = nil

	fmt.Fprintln(f.out)
}

func (f *Frontend) printHeader() {
	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out, strings.Repeat("=", headerWidth))
	fmt.Fprintln(f.out, "  KdG Kiosk Installer")
	fmt.Fprintln(f.out, strings.Repeat("=", headerWidth))
	fmt.Fprintln(f.out)
}

// askYesNo prompts and reads one line; empty input counts as yes.
func (f *Frontend) askYesNo(prompt string) bool {
	fmt.Fprint(f.out, prompt)

	answer, err := bufio.NewReader(f.in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))

	return answer != "n" && answer != "no"
}
