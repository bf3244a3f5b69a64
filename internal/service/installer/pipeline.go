package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brasco123/kdg-kiosk-installer/internal/config"
	"github.com/brasco123/kdg-kiosk-installer/internal/download"
	"github.com/brasco123/kdg-kiosk-installer/internal/github"
	"github.com/brasco123/kdg-kiosk-installer/internal/logger"
	"github.com/brasco123/kdg-kiosk-installer/internal/sysinfo"
)

var (
	// ErrIncompatibleSystem indicates the host failed the compatibility precheck.
	ErrIncompatibleSystem = errors.New("system compatibility check failed")
	// ErrPrivilegeRequired indicates the installer runs without elevation.
	ErrPrivilegeRequired = errors.New("this installer requires sudo privileges")
	// ErrPackageManagerBusy indicates another process holds the package database.
	ErrPackageManagerBusy = errors.New("another package manager is running")
)

// workDirPattern names the exclusively-owned temporary download directory.
const workDirPattern = "kdg-kiosk-installer-"

// Service sequences the installation pipeline: prechecks, release
// resolution, asset selection, download and installation, with a
// guaranteed work directory cleanup on every exit path.
type Service struct {
	cfg      *config.Config
	resolver *github.Resolver
	deb      *DebInstaller

	// Precheck and filesystem seams, replaceable in tests.
	compatibilityProblems func() []string
	isRoot                func() bool
	busyPackageManagers   func() ([]string, error)
	makeWorkDir           func() (string, error)
	removeWorkDir         func(path string) error
}

// Option configures the pipeline service.
type Option func(*Service)

// WithResolver substitutes the release resolver.
func WithResolver(r *github.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithDebInstaller substitutes the package installer.
func WithDebInstaller(d *DebInstaller) Option {
	return func(s *Service) {
		if d != nil {
			s.deb = d
		}
	}
}

// WithCompatibilityCheck substitutes the compatibility precheck.
func WithCompatibilityCheck(check func() []string) Option {
	return func(s *Service) {
		if check != nil {
			s.compatibilityProblems = check
		}
	}
}

// WithPrivilegeCheck substitutes the privilege precheck.
func WithPrivilegeCheck(check func() bool) Option {
	return func(s *Service) {
		if check != nil {
			s.isRoot = check
		}
	}
}

// WithBusyCheck substitutes the busy package manager precheck.
func WithBusyCheck(check func() ([]string, error)) Option {
	return func(s *Service) {
		if check != nil {
			s.busyPackageManagers = check
		}
	}
}

// WithWorkDirHooks substitutes work directory creation and removal.
func WithWorkDirHooks(create func() (string, error), remove func(string) error) Option {
	return func(s *Service) {
		if create != nil {
			s.makeWorkDir = create
		}

		if remove != nil {
			s.removeWorkDir = remove
		}
	}
}

// New creates a pipeline service for the given configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:                   cfg,
		resolver:              github.NewResolver(github.WithTimeout(cfg.ResolveTimeout)),
		deb:                   NewDebInstaller(),
		compatibilityProblems: sysinfo.CompatibilityProblems,
		isRoot:                sysinfo.IsRoot,
		busyPackageManagers:   sysinfo.BusyPackageManagers,
		makeWorkDir: func() (string, error) {
			return os.MkdirTemp("", workDirPattern)
		},
		removeWorkDir: os.RemoveAll,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// run holds the mutable state of a single pipeline execution.
type run struct {
	service   *Service
	callbacks Callbacks

	workDir   string
	cleanedUp bool
}

// Run executes the pipeline once. requestedVersion selects a specific
// asset name; empty means the resolved latest version. The returned
// Outcome is always non-nil; on failure the same error is also returned
// so callers can propagate it directly.
//
// The pipeline is single-pass: any stage failure short-circuits the
// remaining stages, no stage is retried, and the work directory is
// released unconditionally before reporting.
func (s *Service) Run(ctx context.Context, requestedVersion string, callbacks Callbacks) (*Outcome, error) {
	ctx = logger.WithName(ctx, "pipeline")

	if callbacks == nil {
		callbacks = NopCallbacks{}
	}

	r := &run{
		service:   s,
		callbacks: callbacks,
	}

	defer r.cleanup(ctx)

	outcome := r.execute(ctx, requestedVersion)
	if outcome.Err != nil {
		logger.ErrorKV(ctx, "Installation failed", "error", outcome.Err)
		return outcome, outcome.Err
	}

	logger.InfoKV(ctx, "Installation succeeded", "version", outcome.Version)

	return outcome, nil
}

//nolint:cyclop // The stage sequence reads best as one linear flow.
func (r *run) execute(ctx context.Context, requestedVersion string) *Outcome {
	s := r.service

	// Cheap local prechecks gate the expensive stages.
	r.callbacks.OnStage(StageCheckingCompatibility)

	if problems := s.compatibilityProblems(); len(problems) > 0 {
		return fail(FailureIncompatible,
			fmt.Errorf("%w:\n%s", ErrIncompatibleSystem, bulletList(problems)))
	}

	r.callbacks.OnStage(StageCheckingPrivilege)

	if !s.isRoot() {
		return fail(FailurePrivilege,
			fmt.Errorf("%w: please re-run with: sudo kiosk-installer", ErrPrivilegeRequired))
	}

	busy, err := s.busyPackageManagers()
	if err != nil {
		logger.WarnKV(ctx, "Could not scan the process table, continuing", "error", err)
	}

	if len(busy) > 0 {
		return fail(FailureIncompatible,
			fmt.Errorf("%w: %s; wait for it to finish and retry", ErrPackageManagerBusy, strings.Join(busy, ", ")))
	}

	// Network: resolve the latest release and pick the asset.
	r.callbacks.OnStage(StageResolvingRelease)

	info, err := s.resolver.Resolve(ctx, s.cfg.Repository)
	if err != nil {
		kind := FailureNetwork
		if errors.Is(err, github.ErrReleaseNotFound) {
			kind = FailureReleaseNotFound
		}

		return fail(kind, err)
	}

	version := requestedVersion
	if version == "" {
		version = info.Version
	}

	r.callbacks.OnDetail(fmt.Sprintf("Found version: %s", version))
	r.callbacks.OnDetail(fmt.Sprintf("Release: %s", info.DisplayName))

	r.callbacks.OnStage(StageSelectingAsset)

	asset, err := github.SelectAsset(info.Assets, s.cfg.AssetName(version), s.cfg.Architecture)
	if err != nil {
		return failVersioned(FailureAssetNotFound, version, err)
	}

	r.callbacks.OnDetail(fmt.Sprintf("Package: %s", asset.Name))

	// Download into the exclusively-owned work directory.
	r.workDir, err = s.makeWorkDir()
	if err != nil {
		return failVersioned(FailureDownload, version, fmt.Errorf("create work directory: %w", err))
	}

	r.callbacks.OnStage(StageDownloading)

	packagePath := filepath.Join(r.workDir, asset.Name)

	err = download.ToFile(ctx, asset.DownloadURL, packagePath, r.callbacks.OnDownloadProgress)
	if err != nil {
		return failVersioned(FailureDownload, version, err)
	}

	// Install via the package manager.
	r.callbacks.OnStage(StageInstalling)

	installLog, err := s.deb.Install(ctx, packagePath, r.callbacks.OnInstallStatus)
	if err != nil {
		return &Outcome{
			Version: version,
			Log:     installLog,
			Failure: FailureInstall,
			Err:     err,
		}
	}

	r.callbacks.OnStage(StageSucceeded)

	return &Outcome{
		Succeeded: true,
		Version:   version,
		Log:       installLog,
	}
}

// cleanup releases the work directory. It runs on every exit path and is
// idempotent, so the directory is removed at most once per run.
func (r *run) cleanup(ctx context.Context) {
	if r.cleanedUp || r.workDir == "" {
		return
	}

	r.cleanedUp = true

	if err := r.service.removeWorkDir(r.workDir); err != nil {
		logger.WarnKV(ctx, "Could not remove work directory", "path", r.workDir, "error", err)
		return
	}

	logger.DebugKV(ctx, "Removed work directory", "path", r.workDir)
}

func fail(kind FailureKind, err error) *Outcome {
	return &Outcome{
		Failure: kind,
		Err:     err,
	}
}

func failVersioned(kind FailureKind, version string, err error) *Outcome {
	return &Outcome{
		Version: version,
		Failure: kind,
		Err:     err,
	}
}

func bulletList(items []string) string {
	var b strings.Builder

	for _, item := range items {
		b.WriteString("  • ")
		b.WriteString(item)
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}
