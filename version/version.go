// Package version carries build information stamped in via ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of this build, used for plugin
	// host-version constraints.
	Version = "1.0.0"

	// Commit is the git revision the binary was built from.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the full human-readable build identifier.
func String() string {
	return fmt.Sprintf("finbridge %s (%s, built %s)", Version, Commit, Date)
}
