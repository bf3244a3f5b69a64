// Package console is the terminal front end of the installer: stage
// banners, a byte-level download progress bar, live install output and
// the post-install wizard prompt.
package console
