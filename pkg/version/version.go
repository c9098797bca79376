// Package version holds build information set at link time.
package version

import "fmt"

var (
	// Version is the current version of filedesk.
	Version = "0.1.0-dev"

	// GitCommit is the git commit hash (set during build).
	GitCommit = "unknown"

	// BuildDate is the build date (set during build).
	BuildDate = "unknown"
)

// Info returns formatted version information for program.
func Info(program string) string {
	return fmt.Sprintf("%s version %s (commit: %s, built: %s)",
		program, Version, GitCommit, BuildDate)
}
