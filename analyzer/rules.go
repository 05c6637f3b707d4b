package analyzer

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/conductor/types"
)

// RuleConfidence is returned on every rule match. The orchestrator applies
// the configured threshold; the analyzer itself never filters on it.
const RuleConfidence = 0.8

// ruleEntry pairs a kind with the pattern that detects it. Evaluated in
// order; the first match wins.
type ruleEntry struct {
	kind    types.Kind
	pattern *regexp.Regexp
}

// rules is the ordered (regex, kind) list. Order reflects specificity:
// credential and verification phrasing is checked before the more general
// api-check, service-action, and url-visit buckets.
var rules = []ruleEntry{
	{types.KindCredentialFetch, regexp.MustCompile(`(?i)\b(log ?in|sign ?in|password|credential|api[ _-]?key|secret|auth token)\b`)},
	{types.KindVerification, regexp.MustCompile(`(?i)\b(verify|verification|captcha|confirm (your|my) (email|account|identity)|2fa|one-time code|otp)\b`)},
	{types.KindAPICheck, regexp.MustCompile(`(?i)\b(check (the )?api|api status|endpoint (health|status)|ping (the )?api|api rate limit)\b`)},
	{types.KindFileDownload, regexp.MustCompile(`(?i)\b(download|fetch (the )?file|save (the )?file|\.(zip|tar\.gz|tgz|csv|pdf))\b`)},
	{types.KindServiceAction, regexp.MustCompile(`(?i)\b(deploy|restart|provision|configure|rotate|open|manage) .*(service|instance|deployment|database|dashboard)\b`)},
	{types.KindURLVisit, regexp.MustCompile(`(?i)\b(visit|open|go to|navigate to|browse to)\b.*https?://`)},
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

var dataNeededPhrase = regexp.MustCompile(`(?i)\b(?:need|looking for|want)\s+(?:an?|the|my)?\s*([a-zA-Z0-9_ -]{2,40})`)

var dataNeededEnvVar = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,40}_(?:KEY|TOKEN|SECRET|PASSWORD))\b`)

// RuleBased is the mandatory rule-based analyzer backend. It is also the
// fallback for every remote backend, so it must never itself depend on
// network I/O beyond the compiled-in rule set plus configured extras.
type RuleBased struct {
	extra []ruleEntry
}

// NewRuleBased creates a rule-based analyzer. extraPatterns are
// additional user-configured regexes (analyzer.patterns), evaluated
// after the canonical rule list and always mapped to KindUnknown.
// Patterns that fail to compile are silently skipped.
func NewRuleBased(extraPatterns ...string) *RuleBased {
	rb := &RuleBased{}
	for _, p := range extraPatterns {
		if re, err := regexp.Compile(p); err == nil {
			rb.extra = append(rb.extra, ruleEntry{kind: types.KindUnknown, pattern: re})
		}
	}
	return rb
}

// Analyze strips control sequences, matches the ordered rule list, and on
// a match extracts url/service/dataNeeded and builds suggested actions.
func (r *RuleBased) Analyze(_ context.Context, text string) (Result, error) {
	clean := stripControlSequences(text)

	var kind types.Kind
	matched := false
	for _, rule := range rules {
		if rule.pattern.MatchString(clean) {
			kind = rule.kind
			matched = true
			break
		}
	}
	if !matched {
		for _, rule := range r.extra {
			if rule.pattern.MatchString(clean) {
				kind = rule.kind
				matched = true
				break
			}
		}
	}
	if !matched {
		return Result{Detected: false, Confidence: 0}, nil
	}

	url := extractURL(clean)
	service := extractService(clean)
	dataNeeded := extractDataNeeded(clean)

	now := time.Now()
	req := &types.Request{
		ID:               uuid.NewString(),
		Kind:             kind,
		Summary:          summarize(kind, url, service),
		RawOutput:        text,
		URL:              url,
		Service:          service,
		DataNeeded:       dataNeeded,
		SuggestedActions: suggestedActions(kind, url),
		CreatedAt:        now,
	}

	return Result{Detected: true, Confidence: RuleConfidence, Request: req}, nil
}

func extractURL(text string) string {
	m := urlPattern.FindString(text)
	return strings.TrimRight(m, ".,;:!?")
}

func extractService(text string) string {
	lower := strings.ToLower(text)
	for _, svc := range types.KnownServices {
		if strings.Contains(lower, strings.ToLower(svc)) {
			return svc
		}
	}
	return ""
}

func extractDataNeeded(text string) string {
	if m := dataNeededEnvVar.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := dataNeededPhrase.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// suggestedActions builds the default action list per kind, following the
// documented kind → actions mapping.
func suggestedActions(kind types.Kind, url string) []types.BrowserAction {
	switch kind {
	case types.KindURLVisit, types.KindVerification:
		return []types.BrowserAction{types.Navigate(url), types.Screenshot(""), types.ExtractText("")}
	case types.KindCredentialFetch, types.KindAPICheck:
		return []types.BrowserAction{types.Navigate(url), types.ExtractText("")}
	case types.KindFileDownload:
		return []types.BrowserAction{types.Navigate(url)}
	default:
		return []types.BrowserAction{types.Navigate(url), types.Screenshot("")}
	}
}

// summarize builds the human-readable one-line description carried in
// Request.Summary and echoed back in operator messages and injections.
func summarize(kind types.Kind, url, service string) string {
	switch kind {
	case types.KindURLVisit:
		return "Visit " + url
	case types.KindCredentialFetch:
		if service != "" {
			return "Fetch credentials from " + service
		}
		return "Fetch credentials"
	case types.KindVerification:
		if service != "" {
			return "Verify identity with " + service
		}
		return "Verify identity"
	case types.KindAPICheck:
		if service != "" {
			return "Check " + service + " API status"
		}
		return "Check API status"
	case types.KindServiceAction:
		if service != "" {
			return "Perform a service action on " + service
		}
		return "Perform a service action"
	case types.KindFileDownload:
		if url != "" {
			return "Download file from " + url
		}
		return "Download file"
	default:
		var b strings.Builder
		b.WriteString(string(kind))
		if service != "" {
			b.WriteString(" on ")
			b.WriteString(service)
		}
		if url != "" {
			b.WriteString(": ")
			b.WriteString(url)
		}
		return b.String()
	}
}

var _ Analyzer = (*RuleBased)(nil)
