package main

import (
	"fmt"
	"os"

	"github.com/dukerupert/chorely/internal/cli"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
