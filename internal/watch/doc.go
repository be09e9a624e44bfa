// Package watch regenerates templates whenever XRD files under a directory
// change, reporting per-template parameter changes after every run.
package watch
