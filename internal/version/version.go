package version

import "fmt"

const (
	CLIName    = "swapflow"
	CLIVersion = "0.1.0"
)

// Build metadata, injected via -ldflags at release time.
var (
	Commit = "dev"
	Date   = "unknown"
)

func Long() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", CLIName, CLIVersion, Commit, Date)
}
