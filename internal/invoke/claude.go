package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// CLI invokes the agent binary in print mode, one child process per request.
type CLI struct {
	// Command is the binary name, normally "claude".
	Command string
	// Models maps tiers to concrete model identifiers.
	Models map[Tier]string
	// Timeout bounds one invocation. 0 disables the bound.
	Timeout time.Duration
	// Stream, when set, receives output as it is produced (typically
	// os.Stdout for interactive runs). Capture is unaffected.
	Stream io.Writer
}

func (c *CLI) Invoke(ctx context.Context, req Request) (string, error) {
	model, ok := c.Models[req.Tier]
	if !ok || model == "" {
		return "", fmt.Errorf("invoke: no model configured for tier %q", req.Tier)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := []string{"-p", req.Prompt, "--model", model}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}

	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Dir = req.WorkDir
	cmd.Env = buildEnv(req.ExtraEnv)
	// Run the child in its own process group so cancellation reaches any
	// subprocesses the capability spawns.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var captured bytes.Buffer
	writers := []io.Writer{&captured}
	if c.Stream != nil {
		writers = append(writers, c.Stream)
	}
	if req.LogPath != "" {
		logFile, err := os.OpenFile(req.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("invoke: opening log %s: %w", req.LogPath, err)
		}
		defer logFile.Close()
		writers = append(writers, logFile)
	}
	out := io.MultiWriter(writers...)
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := cmd.Run()
	switch {
	case runErr == nil:
		return captured.String(), nil
	case ctx.Err() != nil:
		return "", fmt.Errorf("invoke: role %q: %w", req.Role, ctx.Err())
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return "", &ExitError{Role: req.Role, Code: exitErr.ExitCode(), Output: tail(captured.String())}
		}
		return "", fmt.Errorf("invoke: role %q: %w", req.Role, runErr)
	}
}
