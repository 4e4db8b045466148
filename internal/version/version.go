// Package version holds build-time metadata injected via -ldflags.
// When not set, helpers provide sensible development defaults.
package version

var (
	// Version is a SemVer tag like v4.0.0 for releases. Empty for dev builds.
	Version = ""
	// Commit is the short git SHA for the build.
	Commit = ""
)

// String returns a compact human-readable version for display.
func String() string {
	if Version != "" {
		return Version
	}
	if Commit != "" {
		return "dev-" + Commit
	}
	return "dev"
}
