// Package version holds build information for the tree-grepper binary.
//
// Values are injected at build time:
//
//	-ldflags "-X github.com/trusted-programming/tree-grepper/internal/version.version=v0.3.0 \
//	          -X github.com/trusted-programming/tree-grepper/internal/version.commit=abc123 \
//	          -X github.com/trusted-programming/tree-grepper/internal/version.buildTime=2026-01-01T00:00:00Z"
package version

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"time"
)

//nolint:gochecknoglobals // Required for build-time injection via ldflags.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is the name shown in version output.
const ApplicationName = "tree-grepper"

// Defaults used when a build variable was not injected.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information with defaults applied.
func Get() Info {
	return Info{
		Version:   orDefault(version, DefaultVersion),
		Commit:    orDefault(commit, DefaultCommit),
		BuildTime: orDefault(buildTime, DefaultBuildTime),
		GoVersion: runtime.Version(),
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// SetBuildVars overrides the injected variables. Used by tests.
func SetBuildVars(ver, com, bt string) {
	version, commit, buildTime = ver, com, bt
}

// ResetBuildVars clears the injected variables.
func ResetBuildVars() {
	SetBuildVars("", "", "")
}

// IsDevelopment reports whether the binary was built without a version.
func (i Info) IsDevelopment() bool {
	return i.Version == DefaultVersion
}

// BuiltAt parses BuildTime as RFC3339. It returns the zero time when unknown or malformed.
func (i Info) BuiltAt() time.Time {
	t, err := time.Parse(time.RFC3339, i.BuildTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Write prints the version. short prints the version number only; asJSON prints
// the whole Info as a JSON object.
func (i Info) Write(w io.Writer, short, asJSON bool) error {
	switch {
	case asJSON:
		return json.NewEncoder(w).Encode(i)
	case short:
		_, err := fmt.Fprintln(w, i.Version)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s\nVersion: %s\nCommit: %s\nBuilt: %s\nGo: %s\n",
			ApplicationName, i.Version, i.Commit, i.BuildTime, i.GoVersion)
		return err
	}
}
