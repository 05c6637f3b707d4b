// Package cmd provides CLI commands for the conductor binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// AddrFlag points a client command at a running conductor's gateway.
	AddrFlag = &cli.StringFlag{
		Name:    "addr",
		Aliases: []string{"a"},
		Usage:   "Conductor gateway address (host:port)",
		Value:   "127.0.0.1:8787",
	}
)

// ReadOnlyFlags returns the shared flags for commands that only render
// output (version, and anything reading off an already-configured
// renderer).
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
	}
}

// GatewayClientFlags returns the flags for commands that talk to a
// running conductor's gateway over RPC (status, history).
func GatewayClientFlags() []cli.Flag {
	return append(ReadOnlyFlags(), AddrFlag)
}
