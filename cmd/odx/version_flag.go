package main

import (
	"flag"
	"fmt"
)

var showVersion = flag.Bool("version", false, "Print odx version and exit")

// maybePrintVersion writes the embedded version string to stdout when the
// global --version flag is provided. It returns true when the flag was
// handled so that main can exit early without dispatching a subcommand.
func maybePrintVersion() bool {
	if !*showVersion {
		return false
	}
	fmt.Println(version)
	return true
}
