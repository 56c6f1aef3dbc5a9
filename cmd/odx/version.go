package main

import (
	"flag"
	"fmt"
	"io"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func versionString() string {
	return fmt.Sprintf("%s %s", productName, version)
}

func runVersion(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "version takes no arguments")
		return 2
	}
	fmt.Fprintln(stdout, versionString())
	return 0
}
