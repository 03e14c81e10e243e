// Package version carries the build identity, injected at link time.
package version

var (
	// Version is the semantic version or git describe output.
	Version = "dev"

	// Commit is the short git SHA of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
