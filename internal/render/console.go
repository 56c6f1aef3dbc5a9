// Package render prints decode runs for humans: one line per peeled layer,
// a closing summary, and a hex dump when the final payload is binary.
package render

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/SecScholar/Omni-Decoder/internal/unwrap"
)

// Console renders layers as they stream from the engine. It implements
// unwrap.Sink.
type Console struct {
	out   io.Writer
	color bool
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithColor toggles ANSI styling. Callers should disable it when the output
// is not a terminal.
func WithColor(enabled bool) ConsoleOption {
	return func(c *Console) {
		c.color = enabled
	}
}

// NewConsole constructs a renderer writing to out. Color is on by default.
func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{out: out, color: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Layer prints one decoded layer.
func (c *Console) Layer(l unwrap.Layer) {
	label := string(l.Label)
	if c.color {
		label = labelStyle(l.Label).Render(label)
	}
	fmt.Fprintf(c.out, "[%d] %s %s\n", l.Depth, label, l.Content)
}

// Summary prints the terminal state and the final payload. Binary payloads
// get a canonical hex dump instead of raw bytes.
func (c *Console) Summary(res unwrap.Result) {
	fmt.Fprintln(c.out)
	switch res.Terminal {
	case unwrap.StoppedBinary:
		c.heading("Decoded payload is binary; stopping.")
		fmt.Fprint(c.out, hexDump([]byte(res.Final)))
	case unwrap.StoppedMaxDepth:
		c.heading(fmt.Sprintf("Maximum decode depth reached after %d layers.", len(res.Layers)))
		fmt.Fprintln(c.out, res.Final)
	default:
		if len(res.Layers) == 0 {
			c.heading("No known encoding detected.")
		} else {
			c.heading(fmt.Sprintf("Fully decoded after %d layers.", len(res.Layers)))
		}
		fmt.Fprintln(c.out, res.Final)
	}
}

func (c *Console) heading(msg string) {
	if c.color {
		msg = headingStyle.Render(msg)
	}
	fmt.Fprintln(c.out, msg)
}

// hexDump renders data in the canonical offset/hex/ASCII layout.
func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var sb strings.Builder
	dumper := hex.Dumper(&sb)
	_, _ = dumper.Write(data)
	_ = dumper.Close()
	return sb.String()
}

var _ unwrap.Sink = (*Console)(nil)
