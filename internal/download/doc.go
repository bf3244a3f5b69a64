// Package download streams release assets to disk with chunked,
// byte-accurate progress reporting.
package download
