// Package version exposes the build version of the tool registry binaries.
package version

import "runtime/debug"

// Version is overridden at build time with
// -ldflags "-X github.com/toolmeta/toolregistry/pkg/version.Version=v1.2.3".
var Version = ""

// GetVersion returns the build version, falling back to the module version recorded
// by the Go toolchain and finally to "dev".
func GetVersion() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
