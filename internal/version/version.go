// Package version carries the build information set through -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release version, e.g. 1.4.0
	Version = "dev"

	// Commit is the git commit hash
	Commit = "unknown"

	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// revision falls back to the VCS stamp of the Go toolchain when no commit was
// injected at build time.
func revision() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return Commit
}

// String returns a formatted version string
func String() string {
	return fmt.Sprintf("v%s (commit: %s, built: %s)", Version, revision(), BuildTime)
}
