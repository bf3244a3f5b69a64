// Package config defines the installer settings and provides helpers to
// load, validate and save them in YAML format.
//
// The Config type pins the GitHub repository, the Debian package identity
// and the setup wizard location. Every field has a compiled-in default.
package config
