package main

import (
	"os"

	"github.com/raaihank/mask-sentinel/internal/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	os.Exit(cli.Execute())
}
