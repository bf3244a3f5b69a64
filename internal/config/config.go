package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the fixed identity of the package this installer distributes.
// All fields have compiled-in defaults, so the installer works without a
// settings file; the file exists to repoint test builds at a fork.
type Config struct {
	// Repository is the GitHub "owner/name" the releases are published under.
	Repository string `yaml:"repository"`
	// PackageName is the Debian package name inside the release assets.
	PackageName string `yaml:"package_name"`
	// Architecture is the Debian architecture label expected in asset names.
	Architecture string `yaml:"architecture"`
	// WizardPath is the executable started after a successful installation.
	WizardPath string `yaml:"wizard_path"`
	// ResolveTimeout bounds the release metadata request.
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for installer settings.
	DefaultConfigFilename = "kdg-kiosk-installer.yaml"

	// DefaultRepository hosts the kiosk release assets.
	DefaultRepository = "Brasco123/KdG-Kiosk"

	// DefaultPackageName is the Debian package published in each release.
	DefaultPackageName = "kdg-kiosk"

	// DefaultArchitecture is the only architecture the kiosk is built for.
	DefaultArchitecture = "amd64"

	// DefaultWizardPath is where the installed package places the setup wizard.
	DefaultWizardPath = "/usr/share/kdg-kiosk/setup_wizard.py"

	// DefaultResolveTimeout fails the metadata request fast on a dead network.
	DefaultResolveTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadRepository is returned when the repository is not "owner/name".
	errBadRepository = errors.New(`repository must be in "owner/name" form`)
)

// Default returns a configuration populated with the compiled-in values.
func Default() *Config {
	return &Config{
		Repository:     DefaultRepository,
		PackageName:    DefaultPackageName,
		Architecture:   DefaultArchitecture,
		WizardPath:     DefaultWizardPath,
		ResolveTimeout: DefaultResolveTimeout,
	}
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file is not an error: the defaults are returned instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills omitted ones with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Repository == "" {
		cfg.Repository = DefaultRepository
	}

	owner, name, found := strings.Cut(cfg.Repository, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%q: %w", cfg.Repository, errBadRepository)
	}

	if cfg.PackageName == "" {
		cfg.PackageName = DefaultPackageName
	}

	if cfg.Architecture == "" {
		cfg.Architecture = DefaultArchitecture
	}

	if cfg.WizardPath == "" {
		cfg.WizardPath = DefaultWizardPath
	}

	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}

	return nil
}

// AssetName returns the expected release asset filename for a version,
// e.g. "kdg-kiosk_2.3.1_amd64.deb".
func (c *Config) AssetName(version string) string {
	return fmt.Sprintf("%s_%s_%s.deb", c.PackageName, version, c.Architecture)
}
