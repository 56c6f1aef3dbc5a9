package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/SecScholar/Omni-Decoder/internal/codec"
)

func runEncode(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scheme := fs.String("scheme", string(codec.LabelBase64), "Encoding scheme: binary, hex, url, base32, or base64")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "encode takes a single payload argument")
		return 2
	}

	encoded, err := codec.Encode(codec.Label(*scheme), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, encoded)
	return 0
}
