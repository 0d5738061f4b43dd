// Package version carries build-time version metadata.
package version

// Version is set via ldflags in release builds:
// go build -ldflags "-X git.home.luguber.info/inful/novos/internal/version.Version=v1.2.0".
var Version = "unknown"

// Build metadata, also ldflags-injected.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version with the commit when one is known.
func String() string {
	if GitCommit == "unknown" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
