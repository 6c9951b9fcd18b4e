// Package buildinfo contains build information.
//
// The VCS revision is read from the information embedded by the Go toolchain.
// Packagers who build from a source archive can set it with
// -ldflags "-X github.com/synnaxlabs/synnax-sub025/pkg/buildinfo.VCSOverride=<time>-<revision>".
package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// VersionBase is the version of aether, without any suffix. On development
// commits it identifies the next release.
const VersionBase = "0.3.0"

// VCSOverride, if non-empty, is used as the VCS part of a development
// version, in the form <commit time>-<commit hash>.
var VCSOverride string

// Type contains all the build information fields.
type Type struct {
	Version   string `json:"version"`
	GoVersion string `json:"goversion"`
}

// Value contains the build information of the running binary.
var Value = Type{
	Version:   devVersion(VersionBase, VCSOverride, debug.ReadBuildInfo),
	GoVersion: runtime.Version(),
}

func (t Type) String() string {
	return fmt.Sprintf("Version: %v\nGo version: %v\n", t.Version, t.GoVersion)
}

// JSON returns the build information as a JSON object.
func (t Type) JSON() string {
	b, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func devVersion(next, vcsOverride string, readBuildInfo func() (*debug.BuildInfo, bool)) string {
	if vcsOverride != "" {
		return next + "-dev.0." + vcsOverride
	}
	fallback := next + "-dev.unknown"
	bi, ok := readBuildInfo()
	if !ok {
		return fallback
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		return strings.TrimPrefix(v, "v")
	}
	var revision, timestamp string
	modified := false
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				timestamp = t.UTC().Format("20060102150405")
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" || timestamp == "" {
		return fallback
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	v := next + "-dev.0." + timestamp + "-" + revision
	if modified {
		v += "-dirty"
	}
	return v
}
