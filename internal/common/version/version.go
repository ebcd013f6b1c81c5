package version

import (
	_ "embed"
	"strings"
)

// The VERSION file is embedded at compile time so the binary reports the
// release it was built from without any build-time flags.

//go:embed VERSION
var versionRaw string

// Version is the current mailscan version, trimmed of whitespace.
var Version = strings.TrimSpace(versionRaw)

// Get returns the current version string.
func Get() string {
	return Version
}
