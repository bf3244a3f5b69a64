// Package github resolves the latest published release of a repository and
// selects the distributable .deb asset from it.
//
// Resolution is a single HTTPS GET against the "latest release" endpoint
// with a short timeout; asset selection is a pure function of the release
// metadata and the expected asset name.
package github
