// Package version exposes build metadata shared by the coordinator binaries.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
package version
