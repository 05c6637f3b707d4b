// Package injector formats execution results, denials, and timeouts into
// the exact byte stream written back to the wrapped worker's stdin.
package injector

import (
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/conductor/types"
)

// Stdin is the subset of interceptor.Interceptor the injector writes
// through; kept narrow so callers can fake it without the full process.
type Stdin interface {
	Inject(data []byte) error
}

// Injector writes operator-visible outcomes into the worker's stdin using
// a fixed three-write envelope: an empty line, the payload, an empty line.
// Exact bytes, no implicit reformatting.
type Injector struct {
	stdin Stdin
}

// New creates an Injector writing through stdin.
func New(stdin Stdin) *Injector {
	return &Injector{stdin: stdin}
}

// InjectResults formats the action results of an approved request and
// writes the three-write envelope. Returns the resulting Injection
// regardless of whether the stdin write itself succeeded; Success
// reflects the write outcome.
func (in *Injector) InjectResults(req *types.Request, results []types.ActionResult) types.Injection {
	payload := formatResults(req, results)
	return in.write(req.ID, payload, results)
}

// InjectDenial formats a denial message and writes it. The payload carries
// its own trailing newline so the written stream ends the message with two
// newlines (one blank line), not one.
func (in *Injector) InjectDenial(req *types.Request, reason string) types.Injection {
	payload := fmt.Sprintf("[Aether] Request denied: %s — %s. Proceeding without external access.\n", req.Summary, reason)
	return in.write(req.ID, payload, nil)
}

// InjectTimeout formats a timeout message and writes it.
func (in *Injector) InjectTimeout(req *types.Request) types.Injection {
	payload := fmt.Sprintf("[Aether] Authorization timed out for: %s. Proceeding without external access.", req.Summary)
	return in.write(req.ID, payload, nil)
}

func (in *Injector) write(requestID, payload string, results []types.ActionResult) types.Injection {
	inj := types.Injection{
		RequestID:     requestID,
		Payload:       payload,
		ActionResults: results,
		InjectedAt:    time.Now(),
	}

	if err := in.stdin.Inject([]byte("\n")); err != nil {
		inj.Success = false
		return inj
	}
	if err := in.stdin.Inject([]byte(payload)); err != nil {
		inj.Success = false
		return inj
	}
	if err := in.stdin.Inject([]byte("\n")); err != nil {
		inj.Success = false
		return inj
	}

	inj.Success = true
	return inj
}

// formatResults builds the human-readable payload: a header line naming
// the request summary, then either an all-failed report or a per-action
// success report with a trailing failures section.
func formatResults(req *types.Request, results []types.ActionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Aether] External access result for: %s", req.Summary)

	successes := make([]types.ActionResult, 0, len(results))
	failures := make([]types.ActionResult, 0)
	for _, r := range results {
		if r.Success {
			successes = append(successes, r)
		} else {
			failures = append(failures, r)
		}
	}

	if len(successes) == 0 {
		b.WriteString("\nAll actions failed:")
		for _, f := range failures {
			fmt.Fprintf(&b, "\n  - %s: %s", f.Action.Tag, f.Error)
		}
		return b.String()
	}

	for _, r := range successes {
		b.WriteString("\n")
		b.WriteString(formatSuccessLine(r))
	}

	if len(failures) > 0 {
		b.WriteString("\nSome actions failed:")
		for _, f := range failures {
			fmt.Fprintf(&b, "\n  - %s: %s", f.Action.Tag, f.Error)
		}
	}

	return b.String()
}

func formatSuccessLine(r types.ActionResult) string {
	switch r.Action.Tag {
	case types.ActionNavigate:
		return fmt.Sprintf("Visited %s", r.Action.URL)
	case types.ActionScreenshot:
		return fmt.Sprintf("Screenshot saved: %s", r.ScreenshotPath)
	case types.ActionExtractText:
		return fmt.Sprintf("Extracted text:\n%s", r.Data)
	case types.ActionClick:
		return fmt.Sprintf("Clicked %s", r.Action.Selector)
	case types.ActionType:
		return fmt.Sprintf("Typed into %s", r.Action.Selector)
	case types.ActionWait:
		return fmt.Sprintf("Waited %dms", r.Action.WaitMS)
	case types.ActionScrape:
		return fmt.Sprintf("Scraped %s:\n%s", r.Action.URL, r.Data)
	default:
		return fmt.Sprintf("%s: %s", r.Action.Tag, r.Data)
	}
}
