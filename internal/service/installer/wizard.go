package installer

import (
	"context"
	"os/exec"

	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
)

// LaunchWizard starts the post-install setup wizard as a detached process.
// It is only meaningful after a successful installation; a spawn failure is
// the caller's warning, never a pipeline failure.
func LaunchWizard(ctx context.Context, wizardPath string) error {
	logger.InfoKV(ctx, "Launching setup wizard", "path", wizardPath)

	// Deliberately not CommandContext: the wizard must outlive the installer.
	return exec.Command("python3", wizardPath).Start()
}
