package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is set with -ldflags at release time.
	Version = "dev"
	// Commit is the source revision; read from VCS build info when not set.
	Commit = ""
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String renders build information for the version command.
func String() string {
	commit := Commit
	if commit == "" {
		commit = vcsRevision()
	}
	return fmt.Sprintf("marketeye %s\ncommit: %s\nbuilt: %s\ngo: %s\n", Version, commit, BuildDate, runtime.Version())
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return "unknown"
}
