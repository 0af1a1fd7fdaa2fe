// Package version reports the spl build.
//
// Release builds stamp the variables below, e.g.
//
//	go build -ldflags "-X github.com/edumarques81/spl/internal/version.Version=1.1.0 \
//	  -X github.com/edumarques81/spl/internal/version.GitCommit=$(git rev-parse HEAD)" ./cmd/spl
package version

import "fmt"

var (
	Name      = "spl"
	Version   = "1.0.0"
	BuildTime = ""
	GitCommit = ""
)

// Info is a snapshot of the build variables.
type Info struct {
	Name      string
	Version   string
	BuildTime string
	GitCommit string
}

func GetInfo() Info {
	return Info{Name: Name, Version: Version, BuildTime: BuildTime, GitCommit: GitCommit}
}

// String renders the banner printed by --version, e.g.
// "spl v1.0.0 (abc1234) built 2024-05-01". Unset parts are left out.
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s
}
