// Package version holds build information for the scout binary, set with
// -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/scout-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/scout-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/scout-go/internal/version.BuildDate=2026-01-01"
package version

import "fmt"

var (
	// Version is the semantic version, "dev" for local builds.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "unknown"
	// BuildDate is the UTC build date.
	BuildDate = "unknown"
)

// String renders the build information on one line.
func String() string {
	return fmt.Sprintf("scout %s (commit %s, built %s)", Version, Commit, BuildDate)
}
