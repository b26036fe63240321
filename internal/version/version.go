// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package version provides build-time version information for the
// reseda-server binary. Values are set via ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the current version of reseda-server (set by ldflags).
	Version = "dev"

	// Commit is the git commit hash (set by ldflags).
	Commit = "unknown"

	// BuildTime is the build timestamp (set by ldflags).
	BuildTime = "unknown"
)

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("reseda-server %s (commit: %s, built: %s, go: %s)",
		Version, Commit, BuildTime, runtime.Version())
}

// Short returns just the version number.
func Short() string {
	return Version
}
