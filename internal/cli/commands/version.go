package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// engineModule is the module that provides the SQLite engine.
const engineModule = "modernc.org/sqlite"

// fillFromBuild replaces unknown fields with what the Go toolchain
// stamped into the binary.
func (b BuildInfo) fillFromBuild(info *debug.BuildInfo) BuildInfo {
	if info == nil {
		return b
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.GitCommit == "" || b.GitCommit == "unknown" {
				b.GitCommit = s.Value
			}
		case "vcs.time":
			if b.BuildDate == "" || b.BuildDate == "unknown" {
				b.BuildDate = s.Value
			}
		}
	}
	return b
}

// engineVersion reports the linked SQLite module version.
func engineVersion(info *debug.BuildInfo) string {
	if info == nil {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == engineModule {
			return dep.Version
		}
	}
	return "unknown"
}

// NewVersionCommand creates the version command.
func NewVersionCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display dbbrowser version, build metadata and the linked SQLite engine.`,
		Run: func(cmd *cobra.Command, _ []string) {
			info, _ := debug.ReadBuildInfo()
			b := build.fillFromBuild(info)

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "dbbrowser v%s\n", b.Version)
			_, _ = fmt.Fprintf(out, "  commit:  %s\n", b.GitCommit)
			_, _ = fmt.Fprintf(out, "  built:   %s\n", b.BuildDate)
			_, _ = fmt.Fprintf(out, "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			_, _ = fmt.Fprintf(out, "  sqlite:  %s %s\n", engineModule, engineVersion(info))
		},
	}
}
