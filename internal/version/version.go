// Package version contains the build information of mdnsmcast.
package version

import (
	"runtime/debug"
	"sync"
)

// These can be set by the linker.  Go has no immutable variables, so they are
// only exported through getters.
var (
	branch     string
	committime string
	revision   string
	version    string
)

// Name is the name of the program.
const Name = "mdnsmcast"

// Branch returns the compiled-in value of the Git branch.
func Branch() (b string) {
	return branch
}

// CommitTime returns the compiled-in value of the commit time as a string.
func CommitTime() (t string) {
	return committime
}

// Revision returns the compiled-in value of the Git revision.  If it wasn't set
// by the linker, the VCS revision recorded by the toolchain is used.
func Revision() (r string) {
	if revision != "" {
		return revision
	}

	return vcsRevision()
}

// vcsRevision returns the VCS revision from the build information, if any.
var vcsRevision = sync.OnceValue(func() (r string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}

	return ""
})

// Version returns the compiled-in value of the version as a string.  It
// returns "v0.0.0-dev" if the version wasn't set.
func Version() (v string) {
	if version == "" {
		return "v0.0.0-dev"
	}

	return version
}

// UserAgent returns the product token of the program for HTTP headers, for
// example "mdnsmcast/v1.2.3".
func UserAgent() (ua string) {
	return Name + "/" + Version()
}
