// Package version exposes the build version of the mailgoat binary.
package version

// Version is the release version, overridden at build time via
// -ldflags "-X github.com/mailgoat/mailgoat/pkg/version.Version=v1.2.3".
var Version = "dev" //nolint:gochecknoglobals // set by the linker

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
