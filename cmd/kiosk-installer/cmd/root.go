package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brasco123/kdg-kiosk-installer/internal/config"
	"github.com/brasco123/kdg-kiosk-installer/internal/frontend/console"
	"github.com/brasco123/kdg-kiosk-installer/internal/frontend/gui"
	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
	"github.com/brasco123/kdg-kiosk-installer/internal/service/installer"
	"github.com/brasco123/kdg-kiosk-installer/internal/service/selfupdate"
	"github.com/brasco123/kdg-kiosk-installer/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// installVersion selects a specific release version; empty means latest.
	installVersion string

	// forceCLI disables the graphical front end.
	forceCLI bool

	// logLevel controls logger verbosity.
	logLevel string

	// rootCmd represents the base command for downloading and installing the kiosk package.
	rootCmd = &cobra.Command{
		Use:   "kiosk-installer",
		Short: "Download and install KdG Kiosk from GitHub Releases",
		Long: "Standalone installer for KdG Kiosk. Resolves the latest published release, " +
			"downloads the .deb package with progress tracking and installs it via apt, " +
			"falling back to dpkg when needed.",
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			applyLogLevel(ctx)

			cfg, err := config.Load(configPath)
			if err != nil {
				logger.Fatalf(ctx, "Could not load settings: %v", err)
			}

			service := installer.New(cfg)

			code := runFrontend(ctx, service, cfg)

			stop()
			os.Exit(code)
		},
	}

	// selfUpdateCmd replaces the installer binary with the latest released one.
	selfUpdateCmd = &cobra.Command{
		Use:   "self-update",
		Short: "Update this installer to the latest released version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			applyLogLevel(ctx)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			return selfupdate.Run(ctx, &selfupdate.Options{Config: cfg})
		},
	}
)

// runFrontend picks the graphical front end when a display is available
// and not overridden, the terminal one otherwise.
func runFrontend(ctx context.Context, service *installer.Service, cfg *config.Config) int {
	if !forceCLI && os.Getenv("DISPLAY") != "" {
		return gui.Run(ctx, service, installVersion, cfg)
	}

	return console.New().Run(ctx, service, installVersion, cfg)
}

// applyLogLevel parses the --log-level flag into the global logger.
func applyLogLevel(ctx context.Context) {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		logger.Warnf(ctx, "Unknown log level %q, keeping %s", logLevel, logger.Level())
		return
	}

	logger.SetLevel(level)
}

// Execute runs the kiosk-installer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(selfUpdateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log verbosity (debug, info, warn, error, fatal)")
	rootCmd.Flags().BoolVar(&forceCLI, "cli", false, "force CLI mode (no GUI)")
	rootCmd.Flags().StringVar(&installVersion, "install-version", "",
		"specific version to install (default: latest)")
}
