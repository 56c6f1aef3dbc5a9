package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/SecScholar/Omni-Decoder/internal/updater"
)

func runSelfUpdate(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "channel" {
		return runSelfUpdateChannel(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("self-update", flag.ContinueOnError)
	fs.SetOutput(stderr)
	channelFlag := fs.String("channel", "", "update channel for this invocation (stable or beta)")
	rollback := fs.Bool("rollback", false, "restore the previous odx binary")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "self-update takes no positional arguments")
		return 2
	}

	store, err := updater.NewStore("")
	if err != nil {
		fmt.Fprintf(stderr, "prepare updater config: %v\n", err)
		return 1
	}
	client, err := updater.NewClient(store, version)
	if err != nil {
		fmt.Fprintf(stderr, "prepare updater: %v\n", err)
		return 1
	}

	if *rollback {
		restored, err := client.Rollback()
		if err != nil {
			fmt.Fprintf(stderr, "rollback failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "restored previous binary (%s)\n", restored)
		return 0
	}

	channel := *channelFlag
	if channel == "" {
		cfg, err := store.Load()
		if err != nil {
			fmt.Fprintf(stderr, "load updater config: %v\n", err)
			return 1
		}
		channel = cfg.Channel
	}

	res, err := client.Update(context.Background(), channel)
	if err != nil {
		if errors.Is(err, updater.ErrAlreadyCurrent) {
			fmt.Fprintf(stdout, "%s is already the latest %s release\n", version, channel)
			return 0
		}
		fmt.Fprintf(stderr, "update failed: %v\n", err)
		return 1
	}
	how := "full download"
	if res.UsedDelta {
		how = "delta patch"
	}
	fmt.Fprintf(stdout, "updated %s -> %s (%s channel, %s)\n", res.FromVersion, res.ToVersion, res.Channel, how)
	return 0
}

func runSelfUpdateChannel(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("self-update channel", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, err := updater.NewStore("")
	if err != nil {
		fmt.Fprintf(stderr, "prepare updater config: %v\n", err)
		return 1
	}
	cfg, err := store.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load updater config: %v\n", err)
		return 1
	}

	switch fs.NArg() {
	case 0:
		fmt.Fprintln(stdout, cfg.Channel)
		return 0
	case 1:
		channel, err := updater.NormalizeChannel(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "invalid channel %q: %v\n", fs.Arg(0), err)
			return 2
		}
		cfg.Channel = channel
		if err := store.Save(cfg); err != nil {
			fmt.Fprintf(stderr, "persist updater config: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "default channel set to %s\n", channel)
		return 0
	default:
		fmt.Fprintln(stderr, "self-update channel accepts at most one argument")
		return 2
	}
}
