package executor

import (
	"context"
	"strings"
	"time"

	"github.com/openclaw/conductor/types"
)

// reductionScreenshotOnly and reductionFetchOnly are the operator
// instruction phrases that narrow the action list, per the documented
// approve-with-instructions behavior.
var reductionScreenshotOnly = []string{"only screenshot", "just screenshot"}
var reductionFetchOnly = []string{"only fetch", "just fetch"}

// Executor resolves a Request's action list and runs it against a Plane.
type Executor struct {
	plane              Plane
	actionTimeout      time.Duration
	captureScreenshots bool
}

// New creates an Executor. actionTimeout bounds each individual dispatch
// (browser.actionTimeoutMs); captureScreenshots mirrors
// browser.captureScreenshots.
func New(plane Plane, actionTimeout time.Duration, captureScreenshots bool) *Executor {
	return &Executor{
		plane:              plane,
		actionTimeout:      actionTimeout,
		captureScreenshots: captureScreenshots,
	}
}

// Run resolves the action list for req given the operator's instructions
// (empty for a plain approval), ensures the browser profile is available,
// and dispatches each action in order. A failed navigate action
// short-circuits the remaining actions; any other failure is recorded but
// does not stop the run.
func (e *Executor) Run(ctx context.Context, req *types.Request, instructions string) ([]types.ActionResult, error) {
	actions := e.resolveActions(req, instructions)
	if len(actions) == 0 {
		return nil, nil
	}

	available, err := e.plane.Status(ctx)
	if err != nil {
		return nil, err
	}
	if !available {
		if err := e.plane.Start(ctx); err != nil {
			return nil, err
		}
	}

	results := make([]types.ActionResult, 0, len(actions))
	for _, action := range actions {
		result, err := e.plane.Dispatch(ctx, action, e.actionTimeout)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if action.Tag == types.ActionNavigate && !result.Success {
			break
		}
	}
	return results, nil
}

// resolveActions derives the ordered action list: the request's suggested
// actions (or a default navigate+extract-text pair when none were
// proposed), narrowed by any operator reduction phrase, with a trailing
// best-effort screenshot appended when captureScreenshots is on and the
// list doesn't already end in one.
func (e *Executor) resolveActions(req *types.Request, instructions string) []types.BrowserAction {
	actions := req.SuggestedActions
	if len(actions) == 0 {
		if req.URL == "" {
			return nil
		}
		actions = []types.BrowserAction{types.Navigate(req.URL), types.ExtractText("")}
	}

	clean := strings.ToLower(instructions)
	switch {
	case containsAny(clean, reductionScreenshotOnly):
		actions = reduceTo(actions, types.ActionScreenshot)
	case containsAny(clean, reductionFetchOnly):
		actions = reduceTo(actions, types.ActionExtractText)
	}

	if e.captureScreenshots && !endsWith(actions, types.ActionScreenshot) {
		actions = append(actions, types.Screenshot(""))
	}

	return actions
}

// reduceTo keeps any leading navigate action plus one action matching tag,
// discarding the rest.
func reduceTo(actions []types.BrowserAction, tag types.ActionTag) []types.BrowserAction {
	out := make([]types.BrowserAction, 0, 2)
	if len(actions) > 0 && actions[0].Tag == types.ActionNavigate {
		out = append(out, actions[0])
	}
	out = append(out, types.BrowserAction{Tag: tag})
	return out
}

func endsWith(actions []types.BrowserAction, tag types.ActionTag) bool {
	return len(actions) > 0 && actions[len(actions)-1].Tag == tag
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
