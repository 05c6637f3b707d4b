package types

import "time"

// Injection is the single formatted message written into the worker's
// stdin in response to a Request. Exactly one Injection exists per Request.
type Injection struct {
	RequestID     string         `json:"requestId"`
	Success       bool           `json:"success"`
	Payload       string         `json:"payload"`
	ActionResults []ActionResult `json:"actionResults,omitempty"`
	InjectedAt    time.Time      `json:"injectedAt"`
}

// HistoryEntry is the terminal, audit-visible record of a resolved Request.
// The orchestrator sets Authorization on every entry it records, including
// the auto-deny and auto-approve fast paths.
type HistoryEntry struct {
	Request       Request        `json:"request"`
	Authorization *Authorization `json:"authorization,omitempty"`
	Injection     Injection      `json:"injection"`
	CompletedAt   time.Time      `json:"completedAt"`
}
