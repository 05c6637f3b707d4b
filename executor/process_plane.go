package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/openclaw/conductor/types"
)

// ProcessPlaneConfig configures a browser driver subprocess.
type ProcessPlaneConfig struct {
	// DriverPath is the path to the browser driver binary.
	DriverPath string
	// Profile selects the browser identity/session directory.
	Profile string
	// Headless controls the driver's display mode.
	Headless bool
}

// ProcessPlane manages a single browser driver subprocess, launched on
// first Start/Dispatch and kept alive across requests, mirroring the
// teacher's LaunchManagedBrowser lifecycle: stdin pipe held open to
// signal shutdown, stdout's first line is the driver's ready signal.
type ProcessPlane struct {
	cfg ProcessPlaneConfig

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	wsEndpoint string
}

// NewProcessPlane creates a ProcessPlane. The driver subprocess is not
// spawned until Start or the first Dispatch.
func NewProcessPlane(cfg ProcessPlaneConfig) *ProcessPlane {
	return &ProcessPlane{cfg: cfg}
}

// Status reports whether the driver subprocess is running and its
// endpoint answers a health probe.
func (p *ProcessPlane) Status(ctx context.Context) (bool, error) {
	p.mu.Lock()
	endpoint := p.wsEndpoint
	p.mu.Unlock()

	if endpoint == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/status", nil)
	if err != nil {
		return false, nil
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Start launches the driver subprocess if it is not already running.
func (p *ProcessPlane) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(ctx)
}

func (p *ProcessPlane) startLocked(ctx context.Context) error {
	if p.cmd != nil {
		return nil
	}

	args := []string{"--profile", p.cfg.Profile}
	if p.cfg.Headless {
		args = append(args, "--headless")
	}
	cmd := exec.CommandContext(ctx, p.cfg.DriverPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &Error{Kind: ErrorKindDriverSpawn, Err: fmt.Errorf("driver stdout pipe: %w", err)}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &Error{Kind: ErrorKindDriverSpawn, Err: fmt.Errorf("driver stdin pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return &Error{Kind: ErrorKindDriverSpawn, Err: fmt.Errorf("start driver %s: %w", p.cfg.DriverPath, err)}
	}

	reader := bufio.NewReader(stdout)
	line, err := reader.ReadString('\n')
	if err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		return &Error{Kind: ErrorKindDriverSpawn, Err: fmt.Errorf("reading driver ready line: %w", err)}
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = reader
	p.wsEndpoint = strings.TrimSpace(line)
	return nil
}

// driverRequest is one JSON-line action request sent to the driver.
type driverRequest struct {
	Action types.BrowserAction `json:"action"`
}

// driverResponse is one JSON-line result read back from the driver.
type driverResponse struct {
	Success        bool   `json:"success"`
	Data           string `json:"data"`
	ScreenshotPath string `json:"screenshotPath"`
	Error          string `json:"error"`
}

// Dispatch writes the action as a JSON line to the driver's stdin and
// reads its single-line JSON result, bounding the round trip by timeout.
func (p *ProcessPlane) Dispatch(ctx context.Context, action types.BrowserAction, timeout time.Duration) (types.ActionResult, error) {
	resp, err := p.roundTrip(ctx, action, timeout)
	if err != nil {
		return types.Failed(action, err), nil
	}
	if !resp.Success {
		return types.Failed(action, fmt.Errorf("%s", resp.Error)), nil
	}
	return types.Ok(action, resp.Data, resp.ScreenshotPath), nil
}

func (p *ProcessPlane) roundTrip(ctx context.Context, action types.BrowserAction, timeout time.Duration) (driverResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		if err := p.startLocked(ctx); err != nil {
			return driverResponse{}, err
		}
	}

	body, err := json.Marshal(driverRequest{Action: action})
	if err != nil {
		return driverResponse{}, fmt.Errorf("marshal action: %w", err)
	}
	body = append(body, '\n')

	if _, err := p.stdin.Write(body); err != nil {
		return driverResponse{}, &Error{Kind: ErrorKindBrowserStepFailed, Err: fmt.Errorf("write action: %w", err)}
	}

	type result struct {
		resp driverResponse
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		line, err := p.stdout.ReadString('\n')
		if err != nil {
			resultCh <- result{err: &Error{Kind: ErrorKindBrowserStepFailed, Err: fmt.Errorf("read result: %w", err)}}
			return
		}
		var resp driverResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			resultCh <- result{err: &Error{Kind: ErrorKindBrowserStepFailed, Err: fmt.Errorf("parse result: %w", err)}}
			return
		}
		resultCh <- result{resp: resp}
	}()

	select {
	case r := <-resultCh:
		return r.resp, r.err
	case <-time.After(timeout):
		return driverResponse{}, &Error{Kind: ErrorKindBrowserStepFailed, Err: fmt.Errorf("action timed out after %s", timeout)}
	case <-ctx.Done():
		return driverResponse{}, ctx.Err()
	}
}

// Close signals the driver to shut down by closing stdin, then waits up
// to 5s before force-killing.
func (p *ProcessPlane) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	_ = p.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		_ = p.cmd.Process.Kill()
		<-done
		return nil
	}
}

var _ Plane = (*ProcessPlane)(nil)
