package api

import (
	"runtime/debug"
	"strings"

	"github.com/samber/lo"
)

// Version and VersionCommit are filled from the binary's build info when available
var (
	Version       = "0.1.0"
	VersionCommit = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		Version, VersionCommit = versionFrom(info, Version)
	}
}

// versionFrom prefers the module version stamped by go install and marks commits built from a modified tree
func versionFrom(info *debug.BuildInfo, fallback string) (version, commit string) {
	version = fallback
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = strings.TrimPrefix(v, "v")
	}

	settings := lo.SliceToMap(info.Settings, func(s debug.BuildSetting) (string, string) {
		return s.Key, s.Value
	})
	commit = settings["vcs.revision"]
	if commit != "" && settings["vcs.modified"] == "true" {
		commit += "-dirty"
	}
	return version, commit
}
