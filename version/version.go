// Package version holds build information, set with -ldflags at release time:
//
//	go build -ldflags "-X github.com/jackzampolin/quire/version.GitRelease=v0.1.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag.
	GitRelease = "dev"

	// GitCommit is the commit hash.
	GitCommit = "unknown"

	// GitCommitDate is the commit date.
	GitCommitDate = "unknown"

	// GoInfo is the Go toolchain and platform the binary was built for.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)

// Info is the structured form of the build information.
type Info struct {
	Release string `json:"release" yaml:"release"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	Go      string `json:"go" yaml:"go"`
}

// Get returns the build information.
func Get() Info {
	return Info{Release: GitRelease, Commit: GitCommit, Date: GitCommitDate, Go: GoInfo}
}
