// Package config handles YAML config-file loading for the conductor CLI.
package config

import "time"

// Config is the root conductor.yaml configuration. CLI flags always
// override values loaded from this file; unset fields fall back to the
// defaults documented alongside each struct.
type Config struct {
	Enabled           bool     `yaml:"enabled"`
	WrappedCommand    string   `yaml:"wrapped_command"`
	WrappedArgs       []string `yaml:"wrapped_args"`
	BufferFlushMs     int      `yaml:"buffer_flush_interval_ms"`
	MaxBufferSize     int      `yaml:"max_buffer_size"`

	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Auth     AuthConfig     `yaml:"auth"`
	Browser  BrowserConfig  `yaml:"browser"`

	AuditLog     bool   `yaml:"audit_log"`
	AuditLogPath string `yaml:"audit_log_path"`

	Gateway GatewayConfig `yaml:"gateway"`
}

// AnalyzerConfig configures request detection.
type AnalyzerConfig struct {
	Provider            string   `yaml:"provider"`
	Endpoint            string   `yaml:"endpoint"`
	APIKey              string   `yaml:"api_key"`
	Model               string   `yaml:"model"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	Patterns            []string `yaml:"patterns"`
}

// Target is one operator delivery endpoint.
type Target struct {
	Channel   string `yaml:"channel"`
	To        string `yaml:"to"`
	AccountID string `yaml:"account_id,omitempty"`
	ThreadID  string `yaml:"thread_id,omitempty"`
}

// AuthConfig configures authorization delivery and auto-rules.
type AuthConfig struct {
	Targets             []Target `yaml:"targets"`
	TimeoutMs            int      `yaml:"timeout_ms"`
	AutoApprovePatterns []string `yaml:"auto_approve_patterns"`
	AutoDenyPatterns    []string `yaml:"auto_deny_patterns"`
}

// BrowserConfig configures the execution pipeline's browser plane.
type BrowserConfig struct {
	DriverPath         string `yaml:"driver_path"`
	Profile            string `yaml:"profile"`
	Headless           bool   `yaml:"headless"`
	ActionTimeoutMs    int    `yaml:"action_timeout_ms"`
	CaptureScreenshots bool   `yaml:"capture_screenshots"`
}

// GatewayConfig configures the RPC facade for external UIs.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		Enabled:        false,
		WrappedCommand: "claude",
		WrappedArgs:    nil,
		BufferFlushMs:  2000,
		MaxBufferSize:  8192,
		Analyzer: AnalyzerConfig{
			Provider:            "gemini",
			ConfidenceThreshold: 0.7,
		},
		Auth: AuthConfig{
			TimeoutMs: 120_000,
		},
		Browser: BrowserConfig{
			DriverPath:         "openclaw-browser-driver",
			Profile:            "openclaw",
			Headless:           true,
			ActionTimeoutMs:    30_000,
			CaptureScreenshots: true,
		},
		AuditLog:     true,
		AuditLogPath: "~/.openclaw/conductor-audit.jsonl",
		Gateway: GatewayConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8787",
		},
	}
}

// BufferFlushInterval returns BufferFlushMs as a time.Duration.
func (c *Config) BufferFlushInterval() time.Duration {
	return time.Duration(c.BufferFlushMs) * time.Millisecond
}

// AuthTimeout returns Auth.TimeoutMs as a time.Duration.
func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.Auth.TimeoutMs) * time.Millisecond
}

// ActionTimeout returns Browser.ActionTimeoutMs as a time.Duration.
func (c *Config) ActionTimeout() time.Duration {
	return time.Duration(c.Browser.ActionTimeoutMs) * time.Millisecond
}

// Merge overlays non-zero fields of o onto a copy of c and returns the
// result. Used to apply CLI flag overrides onto a loaded/default config.
func (c Config) Merge(o Config) Config {
	out := c
	if o.Enabled {
		out.Enabled = true
	}
	if o.WrappedCommand != "" {
		out.WrappedCommand = o.WrappedCommand
	}
	if len(o.WrappedArgs) > 0 {
		out.WrappedArgs = o.WrappedArgs
	}
	if o.BufferFlushMs > 0 {
		out.BufferFlushMs = o.BufferFlushMs
	}
	if o.MaxBufferSize > 0 {
		out.MaxBufferSize = o.MaxBufferSize
	}
	if o.Analyzer.Provider != "" {
		out.Analyzer.Provider = o.Analyzer.Provider
	}
	if o.Analyzer.Endpoint != "" {
		out.Analyzer.Endpoint = o.Analyzer.Endpoint
	}
	if o.Analyzer.APIKey != "" {
		out.Analyzer.APIKey = o.Analyzer.APIKey
	}
	if o.Analyzer.Model != "" {
		out.Analyzer.Model = o.Analyzer.Model
	}
	if o.Analyzer.ConfidenceThreshold > 0 {
		out.Analyzer.ConfidenceThreshold = o.Analyzer.ConfidenceThreshold
	}
	if len(o.Analyzer.Patterns) > 0 {
		out.Analyzer.Patterns = o.Analyzer.Patterns
	}
	if o.Auth.TimeoutMs > 0 {
		out.Auth.TimeoutMs = o.Auth.TimeoutMs
	}
	if len(o.Auth.Targets) > 0 {
		out.Auth.Targets = o.Auth.Targets
	}
	if len(o.Auth.AutoApprovePatterns) > 0 {
		out.Auth.AutoApprovePatterns = o.Auth.AutoApprovePatterns
	}
	if len(o.Auth.AutoDenyPatterns) > 0 {
		out.Auth.AutoDenyPatterns = o.Auth.AutoDenyPatterns
	}
	if o.Browser.DriverPath != "" {
		out.Browser.DriverPath = o.Browser.DriverPath
	}
	if o.Browser.Profile != "" {
		out.Browser.Profile = o.Browser.Profile
	}
	if o.Browser.ActionTimeoutMs > 0 {
		out.Browser.ActionTimeoutMs = o.Browser.ActionTimeoutMs
	}
	if o.AuditLog {
		out.AuditLog = true
	}
	if o.AuditLogPath != "" {
		out.AuditLogPath = o.AuditLogPath
	}
	if o.Gateway.Enabled {
		out.Gateway.Enabled = true
	}
	if o.Gateway.Addr != "" {
		out.Gateway.Addr = o.Gateway.Addr
	}
	return out
}
