package main

import (
	"fmt"
	"os"

	"github.com/tech-arch1tect/showcase/cmd/showcase-admin/cli"
)

// Set via -ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := cli.Execute(version, commit); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
