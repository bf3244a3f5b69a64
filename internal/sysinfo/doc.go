// Package sysinfo performs the cheap local prechecks that gate the
// installation pipeline: Debian-family compatibility, elevated privilege
// and a free package database.
package sysinfo
