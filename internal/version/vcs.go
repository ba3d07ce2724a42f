// Package version provides build metadata about the running binary.
package version

import (
	"runtime/debug"
	"time"
)

const ourPath = "github.com/truebit/federation"

// VCSInfo represents the git repository state at build time.
type VCSInfo struct {
	Commit string // head commit hash
	Date   string // commit date in YYYYMMDD format
	Dirty  bool
}

// VCS returns version control information of the binary, if the binary was
// built with module support from a checkout carrying vcs metadata.
func VCS() (VCSInfo, bool) {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		if buildInfo.Main.Path == ourPath {
			return buildInfoVCS(buildInfo)
		}
	}
	return VCSInfo{}, false
}

func buildInfoVCS(info *debug.BuildInfo) (s VCSInfo, ok bool) {
	for _, v := range info.Settings {
		switch v.Key {
		case "vcs.revision":
			s.Commit = v.Value
		case "vcs.modified":
			if v.Value == "true" {
				s.Dirty = true
			}
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
				s.Date = t.Format("20060102")
			}
		}
	}
	if s.Commit != "" && s.Date != "" {
		ok = true
	}
	return
}
