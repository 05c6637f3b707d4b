package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/openclaw/conductor/cli/render"
	"github.com/openclaw/conductor/metrics"
)

// StatsCommand returns the stats command: the process-lifetime counters
// of a running conductor, read over its gateway.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show aggregated counters for a running conductor",
		Flags:  GatewayClientFlags(),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	var snapshot metrics.Snapshot
	if err := callGateway(c.String("addr"), "conductor.stats", nil, &snapshot); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(snapshot)
}
