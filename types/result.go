package types

import "fmt"

// ActionResult is the outcome of dispatching a single BrowserAction.
type ActionResult struct {
	Action         BrowserAction `json:"action"`
	Success        bool          `json:"success"`
	Data           string        `json:"data,omitempty"`
	ScreenshotPath string        `json:"screenshotPath,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Validate checks Success=false iff Error is set.
func (r *ActionResult) Validate() error {
	if r.Success == (r.Error != "") {
		return fmt.Errorf("action result: success=%v must disagree with error set=%v", r.Success, r.Error != "")
	}
	return nil
}

// Ok builds a successful ActionResult.
func Ok(action BrowserAction, data, screenshotPath string) ActionResult {
	return ActionResult{Action: action, Success: true, Data: data, ScreenshotPath: screenshotPath}
}

// Failed builds a failed ActionResult.
func Failed(action BrowserAction, err error) ActionResult {
	return ActionResult{Action: action, Success: false, Error: err.Error()}
}
