// Package version exposes the build version of bulkops.
package version

// version is overridden at build time with
// -ldflags "-X github.com/rshade/bulkops/pkg/version.version=v1.2.3".
var version = "dev" //nolint:gochecknoglobals // set via ldflags

// GetVersion returns the build version.
func GetVersion() string {
	return version
}
