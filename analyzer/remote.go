package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/openclaw/conductor/iox"
	"github.com/openclaw/conductor/types"
)

// minVisibleChars is the threshold below which input is treated as a
// non-request without ever reaching the remote backend.
const minVisibleChars = 20

// DefaultTimeout is the default remote analyzer request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 2

// systemPrompt is the fixed instruction sent with every remote request,
// requiring a strict JSON schema in the reply.
const systemPrompt = `You classify terminal output fragments from an autonomous coding agent. ` +
	`Decide whether the fragment expresses a need for external network access ` +
	`(visiting a URL, fetching a credential, checking an API, downloading a file, ` +
	`a service action, or an identity verification step). ` +
	`Respond with a single JSON object matching exactly this schema, no prose: ` +
	`{"detected": bool, "confidence": number, "kind": string, "summary": string, ` +
	`"url": string, "service": string, "dataNeeded": string, "suggestedActions": array}`

// RemoteConfig configures the remote analyzer backend.
type RemoteConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Retries  int
}

// remoteResponse is the strict JSON schema the remote backend must reply with.
type remoteResponse struct {
	Detected         bool                  `json:"detected"`
	Confidence       float64               `json:"confidence"`
	Kind             types.Kind            `json:"kind"`
	Summary          string                `json:"summary"`
	URL              string                `json:"url"`
	Service          string                `json:"service"`
	DataNeeded       string                `json:"dataNeeded"`
	SuggestedActions []types.BrowserAction `json:"suggestedActions"`
}

// remoteRequestBody is the payload posted to Endpoint.
type remoteRequestBody struct {
	Model  string `json:"model,omitempty"`
	System string `json:"system"`
	Input  string `json:"input"`
}

// Remote is a network-backed analyzer backend. Any failure — non-2xx
// status, JSON parse error, or transport error — falls through to the
// held rule-based analyzer for the same input; the remote error is never
// propagated to the caller.
type Remote struct {
	cfg      RemoteConfig
	client   *http.Client
	fallback *RuleBased
}

// NewRemote creates a remote analyzer backend, holding fallback as the
// rule-based analyzer to use on any failure. Constructing the fallback
// once here (rather than the remote analyzer reaching back into New)
// keeps the fallback chain acyclic.
func NewRemote(cfg RemoteConfig, fallback *RuleBased) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = DefaultRetries
	}
	return &Remote{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		fallback: fallback,
	}
}

// Analyze sends the cleaned text to the configured remote endpoint and
// falls back to the rule-based analyzer on any failure.
func (r *Remote) Analyze(ctx context.Context, text string) (Result, error) {
	clean := stripControlSequences(text)

	if visibleLen(clean) < minVisibleChars {
		return Result{Detected: false, Confidence: 0}, nil
	}

	resp, err := r.call(ctx, clean)
	if err != nil {
		return r.fallback.Analyze(ctx, text)
	}

	if !resp.Detected {
		return Result{Detected: false, Confidence: 0}, nil
	}

	req := &types.Request{
		ID:               uuid.NewString(),
		Kind:             resp.Kind,
		Summary:          resp.Summary,
		RawOutput:        text,
		URL:              resp.URL,
		Service:          resp.Service,
		DataNeeded:       resp.DataNeeded,
		SuggestedActions: resp.SuggestedActions,
		CreatedAt:        time.Now(),
	}

	return Result{Detected: true, Confidence: resp.Confidence, Request: req}, nil
}

// call performs the HTTP round trip with exponential backoff retry,
// mirroring the webhook adapter's non-retriable-4xx / retriable-5xx split.
func (r *Remote) call(ctx context.Context, text string) (*remoteResponse, error) {
	body, err := json.Marshal(remoteRequestBody{Model: r.cfg.Model, System: systemPrompt, Input: text})
	if err != nil {
		return nil, fmt.Errorf("analyzer remote: marshal request: %w", err)
	}

	attempts := 1 + r.cfg.Retries
	var lastErr error

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analyzer remote: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := r.doRequest(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var statusErr *statusError
		if ok := asStatusError(err, &statusErr); ok && statusErr.code >= 400 && statusErr.code < 500 {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("analyzer remote: failed after %d attempts: %w", attempts, lastErr)
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

func asStatusError(err error, target **statusError) bool {
	se, ok := err.(*statusError)
	if ok {
		*target = se
	}
	return ok
}

func (r *Remote) doRequest(ctx context.Context, body []byte) (*remoteResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}

	var parsed remoteResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &parsed, nil
}

// Close releases idle connections held by the remote client.
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func visibleLen(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

var _ Analyzer = (*Remote)(nil)
