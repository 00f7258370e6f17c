// Package version provides build version information embedded at
// compile time.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/josephdodge8141/aspen-backend/version.Version=1.0.0"
package version
