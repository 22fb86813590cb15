package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tasktracker/core/notification"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db         *sqlx.DB
	dispatcher *notification.Dispatcher
	finder     *notification.ReminderFinder
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]            - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  flush                             - send one batch of pending notifications")
	fmt.Fprintln(cli.out, "  remind                            - queue deadline reminders and flush once")
	fmt.Fprintln(cli.out, "  release-stale -older-than DURATION - return stuck 'sending' notifications to 'pending'")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()

	releaseCmd := flag.NewFlagSet("release-stale", flag.ContinueOnError)
	releaseCmd.SetOutput(cli.out)
	releaseOlderThan := releaseCmd.Duration("older-than", 0, "Release notifications claimed longer than this ago (e.g. 1h).")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "flush":
		res, err := cli.dispatcher.Flush(ctx)
		if err != nil {
			return err
		}
		return cli.print(res)
	case "remind":
		res, err := cli.finder.Run(ctx)
		if err != nil {
			return err
		}
		return cli.print(res)
	case "release-stale":
		if err := releaseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *releaseOlderThan <= 0 {
			releaseCmd.Usage()
			return errHelp
		}
		return cli.releaseStale(ctx, *releaseOlderThan)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) releaseStale(ctx context.Context, olderThan time.Duration) error {
	n, err := cli.dispatcher.ReleaseStale(ctx, olderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "released %d notification(s)\n", n)
	return nil
}

func (cli *commandLine) print(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
