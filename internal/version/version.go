package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// Release metadata, injected with
// -ldflags "-X github.com/go-authgate/mcpgate/internal/version.Version=v1.0.0".
// GitCommit and BuildTime fall back to the VCS stamp of the build.
var (
	App       = "mcpgate"
	Version   string
	GitCommit string
	BuildTime string
)

// GetVersion returns the release version, or "dev" for local builds.
func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// PrintVersion writes a human-readable build summary to w.
func PrintVersion(w io.Writer) {
	commit, built := GitCommit, BuildTime
	if commit == "" || built == "" {
		vcsCommit, vcsTime := vcsStamp()
		if commit == "" {
			commit = vcsCommit
		}
		if built == "" {
			built = vcsTime
		}
	}

	fmt.Fprintf(w, "%s version %s\n", App, GetVersion())
	if commit != "" {
		fmt.Fprintf(w, "Git commit: %s\n", short(commit))
	}
	if built != "" {
		fmt.Fprintf(w, "Build time: %s\n", built)
	}
	fmt.Fprintf(w, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func vcsStamp() (revision, at string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	return revision, at
}

func short(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
