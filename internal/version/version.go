// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X fleetwear/internal/version.Version=1.2.0 -X fleetwear/internal/version.Commit=abc123"
var (
	Version = "dev"
	Commit  = "unknown"
)

// Info is the build metadata reported by /health and the version command.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Get returns the running binary's build metadata.
func Get() Info {
	return Info{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
}

func (i Info) String() string {
	return fmt.Sprintf("fleetwear %s (commit %s, %s)", i.Version, i.Commit, i.GoVersion)
}
