// Package buildinfo carries version information injected at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/cuesync/internal/buildinfo.Version=v1.2.0"
package buildinfo

import "fmt"

var (
	Version = "N/A"
	Date    = "N/A"
	Commit  = "N/A"
)

// String formats the build information for startup banners.
func String() string {
	return fmt.Sprintf("Build version: %s\nBuild date: %s\nBuild commit: %s", Version, Date, Commit)
}
