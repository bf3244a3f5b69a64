package version

import "fmt"

// Populated at build time via -ldflags. The defaults identify a local
// development build that was not stamped by the release pipeline.
var (
	// Version is the bare semantic version, matching a release tag with
	// the leading "v" stripped.
	Version = "1.0.0"
	// Commit is the short git SHA of the build.
	Commit = "none"
	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Short returns only the semantic version. The self-update check compares
// it against the resolved release tag.
func Short() string {
	return Version
}

// Full renders the version, commit, and build timestamp on one line.
func Full() string {
	return fmt.Sprintf("kdg-kiosk-installer %s (commit %s, built %s)", Version, Commit, BuildTime)
}
