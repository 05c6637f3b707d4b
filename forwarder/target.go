package forwarder

import "context"

// Target is a single operator delivery endpoint. Adapted from the
// teacher's event-bus adapter boundary: Publish becomes Send of plain
// text rather than a structured run-completion event, since the
// Forwarder delivers human-readable prompts, not machine events.
type Target interface {
	// Send delivers text to this target. Implementations must respect
	// context cancellation and deadlines.
	Send(ctx context.Context, text string) error

	// Close releases target resources.
	Close() error
}
