// Package selfupdate replaces the running installer binary with the
// latest one published in the release feed.
package selfupdate
