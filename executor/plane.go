// Package executor resolves the action list for an authorized request and
// runs it against a browser plane.
package executor

import (
	"context"
	"time"

	"github.com/openclaw/conductor/types"
)

// Plane is the browser execution surface a Dispatch call runs against.
// Implementations own a single managed browser instance; the executor
// treats it as opaque, never reaching into browser internals, only
// start/status/dispatch/close.
type Plane interface {
	// Status reports whether the browser profile is currently available.
	Status(ctx context.Context) (bool, error)
	// Start launches the browser profile. Safe to call when already running.
	Start(ctx context.Context) error
	// Dispatch runs a single action with the given timeout and returns its result.
	Dispatch(ctx context.Context, action types.BrowserAction, timeout time.Duration) (types.ActionResult, error)
	// Close releases the managed browser.
	Close() error
}
