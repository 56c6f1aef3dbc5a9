// Command odx recursively unwraps layered text encodings. Point it at a
// payload and it peels binary, hex, URL, base32, and base64 layers until it
// reaches plaintext, a binary payload, or the depth bound.
package main

import (
	"flag"
	"fmt"
	"os"
)

const productName = "Omni-Decoder"
const cliBanner = productName + " (odx)"

func init() {
	defaultUsage := flag.Usage
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), cliBanner)
		fmt.Fprintln(flag.CommandLine.Output())
		if defaultUsage != nil {
			defaultUsage()
		}
		fmt.Fprintln(flag.CommandLine.Output(), "Commands:")
		fmt.Fprintln(flag.CommandLine.Output(), "  decode       unwrap a payload (default when a payload is given)")
		fmt.Fprintln(flag.CommandLine.Output(), "  encode       wrap a payload in one encoding layer")
		fmt.Fprintln(flag.CommandLine.Output(), "  version      print the version")
		fmt.Fprintln(flag.CommandLine.Output(), "  self-update  update the odx binary in place")
	}
}

func main() {
	flag.Parse()
	if maybePrintVersion() {
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "decode":
		os.Exit(runDecode(args[1:], os.Stdout, os.Stderr))
	case "encode":
		os.Exit(runEncode(args[1:], os.Stdout, os.Stderr))
	case "version":
		os.Exit(runVersion(args[1:], os.Stdout, os.Stderr))
	case "self-update":
		os.Exit(runSelfUpdate(args[1:], os.Stdout, os.Stderr))
	default:
		// Bare payloads decode directly: `odx <payload>` is the common path.
		os.Exit(runDecode(args, os.Stdout, os.Stderr))
	}
}
