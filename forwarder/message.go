package forwarder

import (
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/conductor/types"
)

const maxPayloadPreview = 200

// formatAuthorizationRequest renders the bit-exact operator prompt
// template for a pending request.
func formatAuthorizationRequest(req *types.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "AETHER CONDUCTOR — Authorization Request [%s]\n\n", req.ShortID())
	b.WriteString("Claude needs external access:\n")
	fmt.Fprintf(&b, "  Kind: %s\n", req.Kind)
	fmt.Fprintf(&b, "  Summary: %s\n", req.Summary)
	if req.URL != "" {
		fmt.Fprintf(&b, "  URL: %s\n", req.URL)
	}
	if req.Service != "" {
		fmt.Fprintf(&b, "  Service: %s\n", req.Service)
	}
	if req.DataNeeded != "" {
		fmt.Fprintf(&b, "  Data needed: %s\n", req.DataNeeded)
	}
	b.WriteString("\nReply \"YES\" to approve, \"NO\" to deny.\n")
	b.WriteString("Reply \"YES <instructions>\" to approve with extra guidance.\n")
	seconds := int(time.Until(req.ExpiresAt).Round(time.Second).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	fmt.Fprintf(&b, "Expires in %ds.\n", seconds)
	return b.String()
}

// formatResultNotification renders the bit-exact result notification
// template, truncating the payload preview to 200 characters.
func formatResultNotification(req *types.Request, success bool, payload string) string {
	status := "FAILED"
	if success {
		status = "SUCCESS"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "AETHER CONDUCTOR — Result [%s] %s\n", req.ShortID(), status)
	fmt.Fprintf(&b, "Request: %s\n", req.Summary)
	b.WriteString(truncatePreview(payload, maxPayloadPreview))
	return b.String()
}

func truncatePreview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
