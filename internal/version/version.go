// Package version holds build metadata, overridden at link time:
//
//	go build -ldflags "-X .../internal/version.Version=v0.2.0"
package version

var (
	// Version is the current release version.
	Version = "dev"
	// GitSHA is the git commit SHA.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
