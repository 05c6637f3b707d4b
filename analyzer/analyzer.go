// Package analyzer classifies wrapped-worker output fragments as requests
// for external network access. It is pure with respect to session state:
// each Analyze call depends only on its input text, though the remote
// backend may perform network I/O.
package analyzer

import (
	"context"

	"github.com/openclaw/conductor/types"
)

// Result is the outcome of a single Analyze call.
type Result struct {
	Detected   bool
	Confidence float64
	Request    *types.Request // nil unless Detected
}

// Analyzer classifies a text fragment. Implementations must never return
// an error for ordinary non-detections: Detected=false, Confidence=0 is
// the "nothing here" result. Selection between backends (by the
// configured provider) is made once by the caller via New, not by the
// Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

// New selects a backend by provider name (one of gemini|openai|regex|local
// per the documented enum). Unknown or non-remote provider values map to
// the rule-based backend, matching the documented "unknown values map to
// rule-based" selection rule. extraPatterns are additional regexes
// (analyzer.patterns) that the rule-based backend maps to KindUnknown;
// invalid patterns are skipped rather than failing construction.
func New(provider string, remoteCfg RemoteConfig, extraPatterns []string) Analyzer {
	rules := NewRuleBased(extraPatterns...)
	switch provider {
	case "gemini", "openai":
		return NewRemote(remoteCfg, rules)
	default:
		return rules
	}
}
