// Package version reports the build version.
package version

import (
	"runtime"
	"runtime/debug"
)

// Version is overridden at build time with -ldflags "-X pathplanner/pkg/version.Version=...".
var Version = "v0.3.0"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Revision  string `json:"revision,omitempty"`
}

// Get returns the version and, when the toolchain embedded it, the VCS revision.
func Get() Info {
	info := Info{Version: Version, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Revision = s.Value
			}
		}
	}
	return info
}
