package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/openclaw/conductor/cli/render"
)

// StatusResponse mirrors the gateway's conductor.status result.
type StatusResponse struct {
	Pending      []map[string]any `json:"pending"`
	PendingCount int              `json:"pendingCount"`
	HistoryCount int              `json:"historyCount"`
}

// StatusCommand returns the status command: the pending authorization
// queue and counts of a running conductor, read over its gateway.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show pending authorization requests for a running conductor",
		Flags:  GatewayClientFlags(),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	var resp StatusResponse
	if err := callGateway(c.String("addr"), "conductor.status", nil, &resp); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(resp)
}
