package gui

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/brasco123/kdg-kiosk-installer/internal/config"
	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
	"github.com/brasco123/kdg-kiosk-installer/internal/service/installer"
)

const (
	windowTitle = "KdG Kiosk Installer"

	windowMinWidth  = 500
	windowMinHeight = 400

	bytesPerMegabyte = 1024 * 1024
)

// Frontend is the graphical front end. The pipeline runs on a worker
// goroutine; every widget mutation triggered by its callbacks is marshaled
// onto the fyne event thread via fyne.Do. Network and subprocess calls
// must never block the UI, and widgets must never be touched off-thread.
type Frontend struct {
	window fyne.Window

	status       *widget.Label
	progress     *widget.ProgressBar
	details      *widget.Entry
	launchButton *widget.Button
}

// Run opens the installer window, executes the pipeline in the background
// and blocks until the window closes. The returned exit code is 0 when the
// installation succeeded, 1 otherwise.
func Run(ctx context.Context, service *installer.Service, requestedVersion string, cfg *config.Config) int {
	installerApp := app.New()

	f := &Frontend{
		window: installerApp.NewWindow(windowTitle),
	}

	f.buildContent(ctx, cfg)
	f.window.Resize(fyne.NewSize(windowMinWidth, windowMinHeight))

	succeeded := false

	go func() {
		outcome, err := service.Run(ctx, requestedVersion, f)

		fyne.Do(func() {
			if err != nil {
				f.status.SetText("❌ Installation failed")
				f.appendDetail(fmt.Sprintf("❌ %v", err))

				if outcome.Failure == installer.FailureInstall && outcome.Log != "" {
					f.appendDetail(outcome.Log)
				}

				dialog.ShowError(err, f.window)

				return
			}

			succeeded = true

			f.progress.SetValue(1)
			f.status.SetText("✅ Installation completed successfully!")
			f.appendDetail("✅ Installation completed successfully!")
			f.launchButton.Enable()

			dialog.ShowInformation("Success",
				"KdG Kiosk has been installed successfully!\n\n"+
					"Click 'Launch Setup Wizard' to configure your kiosk.", f.window)
		})
	}()

	f.window.ShowAndRun()

	if succeeded {
		return 0
	}

	return 1
}

// buildContent assembles the window: title, status, progress, detail log
// and the wizard/close buttons.
func (f *Frontend) buildContent(ctx context.Context, cfg *config.Config) {
	title := widget.NewLabelWithStyle(windowTitle, fyne.TextAlignCenter,
		fyne.TextStyle{Bold: true})

	f.status = widget.NewLabel("Initializing...")
	f.status.Alignment = fyne.TextAlignCenter

	f.progress = widget.NewProgressBar()

	f.details = widget.NewMultiLineEntry()
	f.details.Wrapping = fyne.TextWrapWord

	f.launchButton = widget.NewButton("Launch Setup Wizard", func() {
		if err := installer.LaunchWizard(ctx, cfg.WizardPath); err != nil {
			logger.WarnKV(ctx, "Could not launch setup wizard", "error", err)
			dialog.ShowError(fmt.Errorf("could not launch setup wizard: %w\n\n"+
				"You can run it manually with: kdg-kiosk-setup", err), f.window)

			return
		}

		f.window.Close()
	})
	f.launchButton.Disable()

	closeButton := widget.NewButton("Close", f.window.Close)

	content := container.NewBorder(
		container.NewVBox(title, f.status, f.progress),
		container.NewVBox(f.launchButton, closeButton),
		nil, nil,
		f.details,
	)

	f.window.SetContent(container.NewPadded(content))
}

// OnStage updates the status line; invoked from the pipeline goroutine.
func (f *Frontend) OnStage(stage installer.Stage) {
	fyne.Do(func() {
		f.status.SetText(stage.String() + "...")
		f.appendDetail(stage.String() + "...")
	})
}

// OnDetail appends an informational line to the log.
func (f *Frontend) OnDetail(message string) {
	fyne.Do(func() {
		f.appendDetail("   " + message)
	})
}

// OnDownloadProgress advances the bar and shows megabyte counters.
func (f *Frontend) OnDownloadProgress(percent int, downloaded, total int64) {
	fyne.Do(func() {
		f.progress.SetValue(float64(percent) / 100)
		f.status.SetText(fmt.Sprintf("Downloading... %.1f/%.1f MB (%d%%)",
			float64(downloaded)/bytesPerMegabyte, float64(total)/bytesPerMegabyte, percent))
	})
}

// OnInstallStatus appends one live package manager output line.
func (f *Frontend) OnInstallStatus(line string) {
	fyne.Do(func() {
		f.appendDetail("   " + line)
	})
}

// appendDetail must run on the fyne event thread. Append avoids rebuilding
// the whole entry text for every package manager line.
func (f *Frontend) appendDetail(line string) {
	f.details.Append(line + "\n")
}
