// Package gui is the graphical front end of the installer, built on fyne.
// It runs the pipeline on a worker goroutine and marshals every callback
// onto the UI event thread before touching widget state.
package gui
