// Package main provides the conductor CLI entrypoint.
//
// The CLI is the only execution entrypoint. `run` wraps a worker process
// and exits with that process's own exit code (or 128 on termination by
// signal). status, history and stats are read-only, talking to a running
// conductor's gateway over RPC; doctor and version run locally.
//
// Usage:
//
//	conductor <command> [subcommand] [options]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/openclaw/conductor/cli/cmd"
	"github.com/openclaw/conductor/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "conductor",
		Usage:          "Aether Conductor: authorization mediator for a wrapped coding-agent worker",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.StatusCommand(),
			cmd.HistoryCommand(),
			cmd.StatsCommand(),
			cmd.DoctorCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit(), most importantly
// the wrapped worker's own exit code surfaced by `run`.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
