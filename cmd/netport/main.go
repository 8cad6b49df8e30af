// Command netport scans a host for open TCP ports from the terminal or
// serves the scanning job API.
package main

import "github.com/anstrom/netport/cmd/cli"

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
