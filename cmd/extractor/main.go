package main

import (
	"fmt"
	"os"

	"github.com/earnings-extractor/client/cmd/extractor/commands"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := commands.Execute(Version, BuildTime); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
