package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/brasco123/kdg-kiosk-installer/internal/config"
	"github.com/brasco123/kdg-kiosk-installer/internal/download"
	"github.com/brasco123/kdg-kiosk-installer/internal/github"
	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
	"github.com/brasco123/kdg-kiosk-installer/internal/version"
)

const (
	// assetPrefix names the installer binary inside release assets,
	// completed with GOOS and GOARCH: kdg-kiosk-installer_linux_amd64.
	assetPrefix = "kdg-kiosk-installer"

	// targetFileMode is applied to the replaced binary.
	targetFileMode os.FileMode = 0o755
)

// errNoInstallerAsset indicates the release publishes no binary for this platform.
var errNoInstallerAsset = errors.New("no installer binary for this platform in release")

// Options are inputs accepted by the self-update entry point.
type Options struct {
	// Config pins the repository the installer binary is released under.
	Config *config.Config
	// Resolver overrides the release resolver; nil uses the real endpoint.
	Resolver *github.Resolver
	// TargetPath overrides the binary to replace; empty means the running executable.
	TargetPath string
}

// runner holds the state of a single self-update execution.
type runner struct {
	opts    *Options
	workDir string
}

// Run replaces the running installer binary with the latest released one.
// A release matching the current build version is a no-op.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "self-update")

	r := &runner{opts: opts}

	defer r.cleanup(ctx)

	if err := r.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Self-update failed", "error", err)
		return err
	}

	return nil
}

func (r *runner) run(ctx context.Context) error {
	resolver := r.opts.Resolver
	if resolver == nil {
		resolver = github.NewResolver(github.WithTimeout(r.opts.Config.ResolveTimeout))
	}

	info, err := resolver.Resolve(ctx, r.opts.Config.Repository)
	if err != nil {
		return fmt.Errorf("resolve latest release: %w", err)
	}

	if info.Version == version.Short() {
		logger.InfoKV(ctx, "Installer is already up to date", "version", info.Version)
		return nil
	}

	asset, err := selectInstallerAsset(info.Assets, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Updating installer binary",
		"from", version.Short(), "to", info.Version, "asset", asset.Name)

	r.workDir, err = os.MkdirTemp("", "kdg-kiosk-selfupdate-")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	binaryPath := filepath.Join(r.workDir, asset.Name)

	if err = download.ToFile(ctx, asset.DownloadURL, binaryPath, nil); err != nil {
		return err
	}

	return r.apply(ctx, binaryPath)
}

// apply swaps the target binary for the downloaded one.
func (r *runner) apply(ctx context.Context, binaryPath string) error {
	targetPath := r.opts.TargetPath

	if targetPath == "" {
		executable, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate running executable: %w", err)
		}

		targetPath = executable
	}

	binary, err := os.Open(filepath.Clean(binaryPath))
	if err != nil {
		return fmt.Errorf("open downloaded binary: %w", err)
	}

	defer func() {
		_ = binary.Close()
	}()

	options := goupdate.Options{
		TargetPath: targetPath,
		TargetMode: targetFileMode,
	}

	if err = goupdate.Apply(binary, options); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	oldFileName := targetPath + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	logger.InfoKV(ctx, "Installer binary updated", "path", targetPath)

	return nil
}

// cleanup removes the temporary download directory.
func (r *runner) cleanup(ctx context.Context) {
	if r.workDir == "" {
		return
	}

	if err := os.RemoveAll(r.workDir); err != nil {
		logger.WarnKV(ctx, "Could not remove work directory", "path", r.workDir, "error", err)
	}
}

// selectInstallerAsset finds the exact binary asset for the platform.
func selectInstallerAsset(assets []github.AssetRef, goos, goarch string) (github.AssetRef, error) {
	wanted := fmt.Sprintf("%s_%s_%s", assetPrefix, goos, goarch)

	for _, asset := range assets {
		if asset.Name == wanted {
			return asset, nil
		}
	}

	return github.AssetRef{}, fmt.Errorf("expected %s: %w", wanted, errNoInstallerAsset)
}
