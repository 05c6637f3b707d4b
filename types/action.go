package types

import "fmt"

// ActionTag discriminates the BrowserAction variants.
type ActionTag string

const (
	ActionNavigate    ActionTag = "navigate"
	ActionScreenshot  ActionTag = "screenshot"
	ActionExtractText ActionTag = "extract-text"
	ActionClick       ActionTag = "click"
	ActionType        ActionTag = "type"
	ActionWait        ActionTag = "wait"
	ActionScrape      ActionTag = "scrape"
)

// BrowserAction is a single step dispatched to the browser plane.
// It is a tagged variant: only the fields relevant to Tag are populated,
// a discriminated-frame pattern (tag field + type-specific fields)
// rather than a Go sum type, since BrowserAction
// crosses a JSON boundary (suggested actions round-trip through the
// analyzer and the gateway RPC surface).
type BrowserAction struct {
	Tag ActionTag `json:"tag"`

	// URL is required for Navigate and Scrape.
	URL string `json:"url,omitempty"`
	// Selector is required for Click and Type; optional for Screenshot and
	// ExtractText (whole-page when empty).
	Selector string `json:"selector,omitempty"`
	// Text is required for Type.
	Text string `json:"text,omitempty"`
	// WaitMS is required for Wait.
	WaitMS int `json:"waitMs,omitempty"`
	// Selectors is required for Scrape: a named set of selectors to extract.
	Selectors map[string]string `json:"selectors,omitempty"`
}

// Validate checks that the tag-specific required fields are present.
func (a BrowserAction) Validate() error {
	switch a.Tag {
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate action requires url")
		}
	case ActionScreenshot, ActionExtractText:
		// selector is optional
	case ActionClick:
		if a.Selector == "" {
			return fmt.Errorf("click action requires selector")
		}
	case ActionType:
		if a.Selector == "" || a.Text == "" {
			return fmt.Errorf("type action requires selector and text")
		}
	case ActionWait:
		if a.WaitMS <= 0 {
			return fmt.Errorf("wait action requires positive waitMs")
		}
	case ActionScrape:
		if a.URL == "" || len(a.Selectors) == 0 {
			return fmt.Errorf("scrape action requires url and selectors")
		}
	default:
		return fmt.Errorf("unknown action tag %q", a.Tag)
	}
	return nil
}

// Navigate builds a navigate action.
func Navigate(url string) BrowserAction { return BrowserAction{Tag: ActionNavigate, URL: url} }

// Screenshot builds a screenshot action, optionally scoped to a selector.
func Screenshot(selector string) BrowserAction {
	return BrowserAction{Tag: ActionScreenshot, Selector: selector}
}

// ExtractText builds an extract-text action, optionally scoped to a selector.
func ExtractText(selector string) BrowserAction {
	return BrowserAction{Tag: ActionExtractText, Selector: selector}
}
