package config

import "testing"

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	d := Default()

	if d.Enabled {
		t.Error("Enabled default must be false")
	}
	if d.WrappedCommand != "claude" {
		t.Errorf("WrappedCommand = %q, want claude", d.WrappedCommand)
	}
	if d.BufferFlushMs != 2000 {
		t.Errorf("BufferFlushMs = %d, want 2000", d.BufferFlushMs)
	}
	if d.MaxBufferSize != 8192 {
		t.Errorf("MaxBufferSize = %d, want 8192", d.MaxBufferSize)
	}
	if d.Analyzer.Provider != "gemini" {
		t.Errorf("Analyzer.Provider = %q, want gemini", d.Analyzer.Provider)
	}
	if d.Analyzer.ConfidenceThreshold != 0.7 {
		t.Errorf("Analyzer.ConfidenceThreshold = %v, want 0.7", d.Analyzer.ConfidenceThreshold)
	}
	if d.Auth.TimeoutMs != 120_000 {
		t.Errorf("Auth.TimeoutMs = %d, want 120000", d.Auth.TimeoutMs)
	}
	if d.Browser.Profile != "openclaw" {
		t.Errorf("Browser.Profile = %q, want openclaw", d.Browser.Profile)
	}
	if !d.Browser.Headless {
		t.Error("Browser.Headless default must be true")
	}
	if !d.AuditLog {
		t.Error("AuditLog default must be true")
	}
}

func TestMergeOverridesOnlyNonZeroFields(t *testing.T) {
	base := *Default()
	override := Config{WrappedCommand: "my-agent", Auth: AuthConfig{TimeoutMs: 5000}}

	merged := base.Merge(override)

	if merged.WrappedCommand != "my-agent" {
		t.Errorf("WrappedCommand = %q, want my-agent", merged.WrappedCommand)
	}
	if merged.Auth.TimeoutMs != 5000 {
		t.Errorf("Auth.TimeoutMs = %d, want 5000", merged.Auth.TimeoutMs)
	}
	// Untouched fields retain base values.
	if merged.MaxBufferSize != base.MaxBufferSize {
		t.Errorf("MaxBufferSize = %d, want unchanged %d", merged.MaxBufferSize, base.MaxBufferSize)
	}
	if merged.Browser.Profile != base.Browser.Profile {
		t.Errorf("Browser.Profile = %q, want unchanged %q", merged.Browser.Profile, base.Browser.Profile)
	}
}

func TestDurationHelpers(t *testing.T) {
	c := Default()
	if c.BufferFlushInterval().Milliseconds() != 2000 {
		t.Errorf("BufferFlushInterval = %v, want 2000ms", c.BufferFlushInterval())
	}
	if c.AuthTimeout().Seconds() != 120 {
		t.Errorf("AuthTimeout = %v, want 120s", c.AuthTimeout())
	}
	if c.ActionTimeout().Seconds() != 30 {
		t.Errorf("ActionTimeout = %v, want 30s", c.ActionTimeout())
	}
}
