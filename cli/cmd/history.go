package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/openclaw/conductor/cli/render"
)

// HistoryCommand returns the history command: the resolved-request
// audit trail of a running conductor, read over its gateway.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show resolved authorization history for a running conductor",
		Flags: append(GatewayClientFlags(),
			&cli.IntFlag{Name: "limit", Usage: "Maximum entries to return (default 50)"},
			&cli.StringFlag{Name: "since", Usage: "Return entries after this request ID (exclusive)"},
		),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	params := map[string]any{
		"limit":   c.Int("limit"),
		"sinceID": c.String("since"),
	}

	var resp []map[string]any
	if err := callGateway(c.String("addr"), "conductor.history", params, &resp); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(resp)
}
