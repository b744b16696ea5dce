// Package version reports build metadata stamped at link time
package version

// BuildInfo is served by the meta module and logged at boot
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Service is the name the API reports for itself
const Service = "audiencepulse-api"

// Set with -ldflags "-X 'audiencepulse/internal/core/version.version=v0.1.0'
// -X 'audiencepulse/internal/core/version.commit=abcd' -X 'audiencepulse/internal/core/version.date=2026-10-01'"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build information
func Info() BuildInfo {
	return BuildInfo{Service: Service, Version: version, Commit: commit, Date: date}
}

// String renders "service version (commit, date)"
func (b BuildInfo) String() string {
	return b.Service + " " + b.Version + " (" + b.Commit + ", " + b.Date + ")"
}
