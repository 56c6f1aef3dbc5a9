package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/SecScholar/Omni-Decoder/internal/logging"
	"github.com/SecScholar/Omni-Decoder/internal/render"
	"github.com/SecScholar/Omni-Decoder/internal/trail"
	"github.com/SecScholar/Omni-Decoder/internal/unwrap"
)

func runDecode(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	filePath := fs.String("f", "", "Read the payload from a file instead of the command line")
	maxDepth := fs.Int("max-depth", unwrap.DefaultMaxDepth, "Maximum number of layers to unwrap")
	noColor := fs.Bool("no-color", false, "Disable ANSI colors in the output")
	trailPath := fs.String("out", "", "Append the decode trail to a JSON Lines file")
	auditPath := fs.String("audit", "", "Append audit events to a JSON Lines file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	input, source, code := loadInput(fs, *filePath, stderr)
	if code != 0 {
		return code
	}

	var audit *logging.AuditLogger
	if *auditPath != "" {
		var err error
		audit, err = logging.NewAuditLogger("odx", logging.WithoutStderr(), logging.WithFile(*auditPath))
		if err != nil {
			fmt.Fprintf(stderr, "open audit log: %v\n", err)
			return 1
		}
		defer audit.Close()
	}

	runID := trail.NewID()
	emitAudit(stderr, audit, logging.AuditEvent{
		RunID:     runID,
		EventType: logging.EventInputLoad,
		Metadata:  map[string]any{"source": source, "bytes": len(input)},
	})

	console := render.NewConsole(stdout, render.WithColor(!*noColor && isTerminal(stdout)))
	engineOpts := []unwrap.Option{
		unwrap.WithMaxDepth(*maxDepth),
		unwrap.WithSink(console),
	}

	var writer *trail.Writer
	var trailErr error
	now := time.Now
	if *trailPath != "" {
		writer = trail.NewWriter(*trailPath)
		defer writer.Close()
		engineOpts = append(engineOpts, unwrap.WithSink(unwrap.SinkFunc(func(l unwrap.Layer) {
			if trailErr != nil {
				return
			}
			trailErr = writer.Write(trail.NewLayerRecord(runID, l, now()))
		})))
	}
	if audit != nil {
		engineOpts = append(engineOpts, unwrap.WithSink(unwrap.SinkFunc(func(l unwrap.Layer) {
			emitAudit(stderr, audit, logging.AuditEvent{
				RunID:     runID,
				EventType: logging.EventLayerDecoded,
				Metadata:  map[string]any{"depth": l.Depth, "label": string(l.Label)},
			})
		})))
	}

	result := unwrap.New(engineOpts...).Run(input)
	console.Summary(result)

	if writer != nil && trailErr == nil {
		trailErr = writer.Write(trail.NewTerminalRecord(runID, result, now()))
		if trailErr == nil {
			emitAudit(stderr, audit, logging.AuditEvent{
				RunID:     runID,
				EventType: logging.EventTrailWrite,
				Metadata:  map[string]any{"path": writer.Path(), "records": len(result.Layers) + 1},
			})
		}
	}

	emitAudit(stderr, audit, logging.AuditEvent{
		RunID:     runID,
		EventType: logging.EventRunStopped,
		Reason:    string(result.Terminal),
		Metadata:  map[string]any{"layers": len(result.Layers)},
	})

	if trailErr != nil {
		fmt.Fprintf(stderr, "write decode trail: %v\n", trailErr)
		return 1
	}
	return 0
}

// loadInput resolves the payload from either the positional argument or the
// -f file. Exactly one source must be supplied.
func loadInput(fs *flag.FlagSet, filePath string, stderr io.Writer) (input, source string, code int) {
	switch {
	case filePath != "" && fs.NArg() > 0:
		fmt.Fprintln(stderr, "provide a payload argument or -f, not both")
		return "", "", 2
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			fmt.Fprintf(stderr, "read input file: %v\n", err)
			return "", "", 1
		}
		return strings.TrimRight(string(data), "\r\n"), "file", 0
	case fs.NArg() == 1:
		return fs.Arg(0), "argument", 0
	case fs.NArg() == 0:
		fmt.Fprintln(stderr, "a payload argument or -f <file> is required")
		return "", "", 2
	default:
		fmt.Fprintln(stderr, "decode takes a single payload argument")
		return "", "", 2
	}
}

func emitAudit(stderr io.Writer, audit *logging.AuditLogger, event logging.AuditEvent) {
	if audit == nil {
		return
	}
	if err := audit.Emit(event); err != nil {
		fmt.Fprintf(stderr, "emit audit event: %v\n", err)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
