package orchestrator

import "errors"

// ErrUnknownRequestID is returned by Resolve when the given id is not (or
// is no longer) in the pending map — either it never existed, or another
// resolution path already won the race for it.
var ErrUnknownRequestID = errors.New("orchestrator: unknown or already-resolved request id")
