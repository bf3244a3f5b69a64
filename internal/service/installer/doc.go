// Package installer implements the installation pipeline: compatibility
// and privilege prechecks, release resolution, asset selection, a
// progress-tracked download into a temporary work directory and a
// two-tier apt/dpkg installation.
//
// The pipeline is synchronous and single-pass; front ends observe it
// through the Callbacks interface and decide themselves whether to run it
// on a worker goroutine.
package installer
