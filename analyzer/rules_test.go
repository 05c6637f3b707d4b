package analyzer_test

import (
	"context"
	"testing"

	"github.com/openclaw/conductor/analyzer"
	"github.com/openclaw/conductor/types"
)

func TestRuleBasedDetectsCredentialFetch(t *testing.T) {
	r := analyzer.NewRuleBased()

	result, err := r.Analyze(context.Background(), "I need to log in to https://railway.app/login to get an API key")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.Detected {
		t.Fatal("expected detection")
	}
	if result.Confidence != analyzer.RuleConfidence {
		t.Errorf("confidence = %v, want %v", result.Confidence, analyzer.RuleConfidence)
	}
	if result.Request.Kind != types.KindCredentialFetch {
		t.Errorf("kind = %v, want %v", result.Request.Kind, types.KindCredentialFetch)
	}
	if result.Request.Service != "Railway" {
		t.Errorf("service = %q, want Railway", result.Request.Service)
	}
	if result.Request.URL != "https://railway.app/login" {
		t.Errorf("url = %q, want https://railway.app/login", result.Request.URL)
	}
}

func TestRuleBasedNoMatchReturnsUndetected(t *testing.T) {
	r := analyzer.NewRuleBased()

	result, err := r.Analyze(context.Background(), "Compiling module foo... done.")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Detected {
		t.Fatal("expected no detection")
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", result.Confidence)
	}
}

func TestRuleBasedStripsControlSequencesBeforeMatching(t *testing.T) {
	r := analyzer.NewRuleBased()
	coloredText := "\x1b[31mneed\x1b[0m to verify your account at https://example.com/verify"

	result, err := r.Analyze(context.Background(), coloredText)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.Detected {
		t.Fatal("expected detection after stripping control sequences")
	}
	if result.Request.Kind != types.KindVerification {
		t.Errorf("kind = %v, want %v", result.Request.Kind, types.KindVerification)
	}
}

func TestRuleBasedSuggestedActionsPerKind(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		kind  types.Kind
		count int
	}{
		{"url-visit", "Please visit https://example.com/dashboard to continue", types.KindURLVisit, 3},
		{"credential-fetch", "need to log in at https://example.com/login", types.KindCredentialFetch, 2},
		{"file-download", "download the file from https://example.com/archive.zip", types.KindFileDownload, 1},
	}

	r := analyzer.NewRuleBased()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := r.Analyze(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if !result.Detected {
				t.Fatal("expected detection")
			}
			if result.Request.Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", result.Request.Kind, tc.kind)
			}
			if len(result.Request.SuggestedActions) != tc.count {
				t.Fatalf("suggested actions = %d, want %d", len(result.Request.SuggestedActions), tc.count)
			}
		})
	}
}

// TestRuleBasedDetectsUnderscoredAPIKey covers the literal scenario-2 input,
// where the credential-fetch phrasing uses an underscore ("API_KEY") rather
// than a space or hyphen.
func TestRuleBasedDetectsUnderscoredAPIKey(t *testing.T) {
	r := analyzer.NewRuleBased()

	result, err := r.Analyze(context.Background(), "I need the API_KEY from Vercel to continue.")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.Detected {
		t.Fatal("expected detection")
	}
	if result.Request.Kind != types.KindCredentialFetch {
		t.Errorf("kind = %v, want %v", result.Request.Kind, types.KindCredentialFetch)
	}
	if result.Request.Service != "Vercel" {
		t.Errorf("service = %q, want Vercel", result.Request.Service)
	}
}

// TestRuleBasedDetectsServiceActionWithoutURL covers the literal
// scenario-3 input, which pairs the verb "open" with a dashboard named by
// service instead of giving an actual URL.
func TestRuleBasedDetectsServiceActionWithoutURL(t *testing.T) {
	r := analyzer.NewRuleBased()

	result, err := r.Analyze(context.Background(), "Please open the Railway dashboard and find the database URL.")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.Detected {
		t.Fatal("expected detection")
	}
	if result.Request.Kind != types.KindServiceAction {
		t.Errorf("kind = %v, want %v", result.Request.Kind, types.KindServiceAction)
	}
}

func TestRuleBasedExtractsDataNeededFromEnvVar(t *testing.T) {
	r := analyzer.NewRuleBased()

	result, err := r.Analyze(context.Background(), "need the STRIPE_API_KEY to check the api status at https://api.stripe.com")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.Detected {
		t.Fatal("expected detection")
	}
	if result.Request.DataNeeded != "STRIPE_API_KEY" {
		t.Errorf("dataNeeded = %q, want STRIPE_API_KEY", result.Request.DataNeeded)
	}
}
