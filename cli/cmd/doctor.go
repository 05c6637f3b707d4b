package cmd

import (
	"fmt"
	"net"
	"os/exec"

	"github.com/urfave/cli/v2"

	"github.com/openclaw/conductor/cli/render"
	"github.com/openclaw/conductor/config"
)

// CheckResult is one doctor diagnostic's outcome.
type CheckResult struct {
	Check  string `json:"check"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// DoctorCommand returns the doctor command: a set of local diagnostics
// over a conductor.yaml, run before `conductor run` to catch
// misconfiguration early (wrapped command not on PATH, remote analyzer
// without an api_key, audit log enabled without a path, gateway address
// that cannot be bound) without spawning the worker process.
func DoctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Diagnose a conductor configuration",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to conductor.yaml"},
		),
		Action: doctorAction,
	}
}

func doctorAction(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load config: %v", err), 1)
		}
		merged := cfg.Merge(*loaded)
		cfg = &merged
	}

	results := []CheckResult{
		checkWrappedCommand(cfg),
		checkAnalyzerConfig(cfg),
		checkAuthConfig(cfg),
		checkAuditLog(cfg),
		checkGatewayAddr(cfg),
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := r.Render(results); err != nil {
		return err
	}

	for _, res := range results {
		if !res.OK {
			return cli.Exit("", 1)
		}
	}
	return nil
}

func checkWrappedCommand(cfg *config.Config) CheckResult {
	if cfg.WrappedCommand == "" {
		return CheckResult{Check: "wrapped_command", OK: false, Detail: "wrapped_command is empty"}
	}
	path, err := exec.LookPath(cfg.WrappedCommand)
	if err != nil {
		return CheckResult{Check: "wrapped_command", OK: false, Detail: fmt.Sprintf("%q not found on PATH", cfg.WrappedCommand)}
	}
	return CheckResult{Check: "wrapped_command", OK: true, Detail: path}
}

func checkAnalyzerConfig(cfg *config.Config) CheckResult {
	remote := cfg.Analyzer.Provider == "gemini" || cfg.Analyzer.Provider == "openai"
	if remote && cfg.Analyzer.APIKey == "" {
		return CheckResult{
			Check:  "analyzer",
			OK:     false,
			Detail: fmt.Sprintf("provider %q configured without an api_key; falls back to rule-based detection", cfg.Analyzer.Provider),
		}
	}
	if cfg.Analyzer.ConfidenceThreshold <= 0 || cfg.Analyzer.ConfidenceThreshold > 1 {
		return CheckResult{Check: "analyzer", OK: false, Detail: "confidence_threshold must be in (0, 1]"}
	}
	return CheckResult{Check: "analyzer", OK: true, Detail: fmt.Sprintf("provider=%s threshold=%.2f", cfg.Analyzer.Provider, cfg.Analyzer.ConfidenceThreshold)}
}

func checkAuthConfig(cfg *config.Config) CheckResult {
	if len(cfg.Auth.Targets) == 0 && !cfg.Gateway.Enabled {
		return CheckResult{
			Check:  "auth_targets",
			OK:     false,
			Detail: "no auth.targets configured and gateway disabled; every request will time out unresolved",
		}
	}
	return CheckResult{Check: "auth_targets", OK: true, Detail: fmt.Sprintf("%d target(s), gateway enabled=%v", len(cfg.Auth.Targets), cfg.Gateway.Enabled)}
}

func checkAuditLog(cfg *config.Config) CheckResult {
	if !cfg.AuditLog {
		return CheckResult{Check: "audit_log", OK: true, Detail: "disabled"}
	}
	if cfg.AuditLogPath == "" {
		return CheckResult{Check: "audit_log", OK: false, Detail: "audit_log is enabled but audit_log_path is empty"}
	}
	return CheckResult{Check: "audit_log", OK: true, Detail: cfg.AuditLogPath}
}

func checkGatewayAddr(cfg *config.Config) CheckResult {
	if !cfg.Gateway.Enabled {
		return CheckResult{Check: "gateway", OK: true, Detail: "disabled"}
	}
	if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		return CheckResult{Check: "gateway", OK: false, Detail: fmt.Sprintf("invalid addr %q: %v", cfg.Gateway.Addr, err)}
	}
	ln, err := net.Listen("tcp", cfg.Gateway.Addr)
	if err != nil {
		return CheckResult{Check: "gateway", OK: false, Detail: fmt.Sprintf("%s already in use: %v", cfg.Gateway.Addr, err)}
	}
	_ = ln.Close()
	return CheckResult{Check: "gateway", OK: true, Detail: cfg.Gateway.Addr}
}
