// SPDX-License-Identifier: MIT
//
// Package build carries build metadata injected at compile time via
// -ldflags. Development builds without flags fall back to "dev" values
// instead of failing startup.
package build

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Populated by -ldflags during release builds.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "reactive",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize copies any injected build information into the flags struct.
// Missing flags keep their development defaults.
func Initialize() {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
