package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/openclaw/conductor/analyzer"
	"github.com/openclaw/conductor/audit"
	"github.com/openclaw/conductor/config"
	"github.com/openclaw/conductor/executor"
	"github.com/openclaw/conductor/forwarder"
	"github.com/openclaw/conductor/forwarder/redistarget"
	"github.com/openclaw/conductor/forwarder/webhooktarget"
	"github.com/openclaw/conductor/gateway"
	"github.com/openclaw/conductor/injector"
	"github.com/openclaw/conductor/interceptor"
	"github.com/openclaw/conductor/log"
	"github.com/openclaw/conductor/metrics"
	"github.com/openclaw/conductor/orchestrator"
)

// exitInternalError is used when the conductor itself fails to start,
// as opposed to the wrapped worker's own exit code.
const exitInternalError = 1

// RunCommand returns the run command: wrap a worker process, mediate its
// network-access requests through a human operator (and, if enabled, the
// RPC gateway), and exit with the worker's own exit code.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Wrap a worker process and mediate its network-access requests",
		ArgsUsage: "-- <command> [args...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to conductor.yaml"},
			&cli.StringFlag{Name: "command", Usage: "Wrapped worker command (overrides config/positional args)"},
			&cli.IntFlag{Name: "buffer-flush-ms", Usage: "Output buffer flush interval in milliseconds"},
			&cli.IntFlag{Name: "max-buffer-size", Usage: "Maximum output buffer size in bytes"},
			&cli.IntFlag{Name: "auth-timeout-ms", Usage: "Operator authorization timeout in milliseconds"},
			&cli.Float64Flag{Name: "confidence-threshold", Usage: "Minimum analyzer confidence for a detection to become a request"},
			&cli.BoolFlag{Name: "gateway", Usage: "Enable the RPC gateway"},
			&cli.StringFlag{Name: "gateway-addr", Usage: "Gateway listen address"},
			&cli.BoolFlag{Name: "no-audit-log", Usage: "Disable the audit log"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitInternalError)
		}
		merged := cfg.Merge(*loaded)
		cfg = &merged
	}

	if command := c.String("command"); command != "" {
		cfg.WrappedCommand = command
	} else if c.NArg() > 0 {
		cfg.WrappedCommand = c.Args().First()
		cfg.WrappedArgs = c.Args().Tail()
	}
	if cfg.WrappedCommand == "" {
		return cli.Exit("a wrapped command is required (positional args, --command, or config wrapped_command)", exitInternalError)
	}

	cfg.BufferFlushMs = resolveInt(c, "buffer-flush-ms", cfg.BufferFlushMs)
	cfg.MaxBufferSize = resolveInt(c, "max-buffer-size", cfg.MaxBufferSize)
	cfg.Auth.TimeoutMs = resolveInt(c, "auth-timeout-ms", cfg.Auth.TimeoutMs)
	if c.IsSet("confidence-threshold") {
		cfg.Analyzer.ConfidenceThreshold = c.Float64("confidence-threshold")
	}
	if c.Bool("gateway") {
		cfg.Gateway.Enabled = true
	}
	if addr := c.String("gateway-addr"); addr != "" {
		cfg.Gateway.Addr = addr
	}
	if c.Bool("no-audit-log") {
		cfg.AuditLog = false
	}

	logger := log.New()

	targets, err := buildTargets(cfg, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to build auth targets: %v", err), exitInternalError)
	}

	var auditSink audit.Appender = audit.NopSink{}
	if cfg.AuditLog {
		sink, err := audit.Open(cfg.AuditLogPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open audit log: %v", err), exitInternalError)
		}
		auditSink = sink
	}

	collector := metrics.NewCollector(cfg.Analyzer.Provider, len(targets))

	an := analyzer.New(cfg.Analyzer.Provider, analyzer.RemoteConfig{
		Endpoint: cfg.Analyzer.Endpoint,
		APIKey:   cfg.Analyzer.APIKey,
		Model:    cfg.Analyzer.Model,
	}, cfg.Analyzer.Patterns)

	fwd := forwarder.New(targets, cfg.AuthTimeout(), logger, collector)

	plane := executor.NewProcessPlane(executor.ProcessPlaneConfig{
		DriverPath: cfg.Browser.DriverPath,
		Profile:    cfg.Browser.Profile,
		Headless:   cfg.Browser.Headless,
	})
	ex := executor.New(plane, cfg.ActionTimeout(), cfg.Browser.CaptureScreenshots)

	// The Injector needs a Stdin to write through, but the Orchestrator
	// constructs its own Interceptor internally once orchestrator.New
	// runs. stdinHandoff closes that gap: it forwards to orch.InjectRaw
	// once orch is assigned below, which happens before any request can
	// resolve (resolution only follows a worker output flush).
	handoff := &stdinHandoff{}
	inj := injector.New(handoff)

	var gw *gateway.Gateway
	if cfg.Gateway.Enabled {
		gw = gateway.New(cfg.AuthTimeout(), logger)
	}

	deps := orchestrator.Dependencies{
		Analyzer:  an,
		Forwarder: fwd,
		Executor:  ex,
		Injector:  inj,
		Audit:     auditSink,
		Metrics:   collector,
		Logger:    logger,
	}
	if gw != nil {
		deps.OnRequested = gw.OnRequested
		deps.OnResolved = gw.OnResolved
	}

	orch, err := orchestrator.New(interceptor.Config{
		Command:             cfg.WrappedCommand,
		Args:                cfg.WrappedArgs,
		MaxBufferSize:       cfg.MaxBufferSize,
		BufferFlushInterval: cfg.BufferFlushInterval(),
	}, orchestrator.Config{
		ConfidenceThreshold: cfg.Analyzer.ConfidenceThreshold,
		AuthTimeout:         cfg.AuthTimeout(),
		AutoDenyPatterns:    cfg.Auth.AutoDenyPatterns,
		AutoApprovePatterns: cfg.Auth.AutoApprovePatterns,
	}, deps)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to build orchestrator: %v", err), exitInternalError)
	}
	handoff.orch = orch
	if gw != nil {
		gw.Attach(orch)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		_ = orch.Stop()
		cancel()
	}()

	if gw != nil {
		go func() {
			if err := gw.Serve(ctx, cfg.Gateway.Addr); err != nil {
				logger.Warn("gateway stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	if err := orch.Start(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("failed to start wrapped worker: %v", err), exitInternalError)
	}

	<-orch.Done()
	cancel()

	if sig := orch.ExitSignal(); sig != "" {
		return cli.Exit(fmt.Sprintf("wrapped worker terminated by signal %s", sig), 128)
	}
	return cli.Exit("", orch.ExitCode())
}

// stdinHandoff adapts injector.Stdin onto an Orchestrator that does not
// exist yet at injector.New time.
type stdinHandoff struct {
	orch *orchestrator.Orchestrator
}

func (h *stdinHandoff) Inject(data []byte) error {
	return h.orch.InjectRaw(data)
}

func buildTargets(cfg *config.Config, logger *log.Logger) ([]forwarder.Target, error) {
	targets := make([]forwarder.Target, 0, len(cfg.Auth.Targets))
	for _, t := range cfg.Auth.Targets {
		switch t.Channel {
		case "webhook":
			target, err := webhooktarget.New(webhooktarget.Config{URL: t.To})
			if err != nil {
				return nil, fmt.Errorf("webhook target %q: %w", t.To, err)
			}
			targets = append(targets, target)
		case "redis":
			target, err := redistarget.New(redistarget.Config{URL: t.To})
			if err != nil {
				return nil, fmt.Errorf("redis target %q: %w", t.To, err)
			}
			targets = append(targets, target)
		default:
			return nil, fmt.Errorf("unsupported auth target channel: %q", t.Channel)
		}
	}
	return targets, nil
}

// resolveInt returns the CLI flag value if explicitly set, else the
// config-provided value if non-zero, else the urfave default (0).
func resolveInt(c *cli.Context, flag string, configVal int) int {
	if c.IsSet(flag) {
		return c.Int(flag)
	}
	if configVal != 0 {
		return configVal
	}
	return c.Int(flag)
}
