package version

import (
	"fmt"
	"runtime"
)

// Build information that can be set via ldflags during build
var (
	// Version is the release being run
	Version = "dev"

	// GitCommit is the git commit hash this binary was built from
	GitCommit = "unknown"

	// BuildDate is the date this binary was built
	BuildDate = "unknown"

	// GoVersion is the version of Go this was compiled with
	GoVersion = runtime.Version()
)

// Service is the name reported in health responses and outbound requests
const Service = "erp-backend-go"

// BuildInfo contains all build-related information
type BuildInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// GetVersion returns the current version
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if GitCommit == "" || GitCommit == "unknown" {
		return "dev-unknown"
	}
	if len(GitCommit) > 8 {
		return "dev-" + GitCommit[:8]
	}
	return "dev-" + GitCommit
}

// GetBuildInfo returns all build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Service:   Service,
		Version:   GetVersion(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// UserAgent identifies this service on outbound notification requests
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Service, GetVersion())
}
