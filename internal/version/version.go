package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/oshokin/ac-deploy/internal/version.Commit=...".
var (
	Version   = "0.3.0"
	Commit    = ""
	BuildTime = ""
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version with commit and build time. Values missing from
// ldflags are taken from the VCS stamp of the binary, if any.
func Full() string {
	commit, built := stamp(Commit, BuildTime, readSettings())

	return fmt.Sprintf("ac-deploy %s (commit %s, built %s)", Version, commit, built)
}

func readSettings() []debug.BuildSetting {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	return info.Settings
}

// stamp fills commit and built from vcs.revision and vcs.time.
func stamp(commit, built string, settings []debug.BuildSetting) (string, string) {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && commit == "":
			commit = s.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case s.Key == "vcs.time" && built == "":
			built = s.Value
		}
	}

	if commit == "" {
		commit = "none"
	}

	if built == "" {
		built = "unknown"
	}

	return commit, built
}
