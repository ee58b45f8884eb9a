// Package version holds build-time version metadata, set via -ldflags by
// the release build the way most Go CLIs stamp their binaries.
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
