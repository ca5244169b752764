package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// stderrLogLimit caps how much tool stderr is copied into logs.
const stderrLogLimit = 8 << 10

// Runner executes a poppler tool. Tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs poppler binaries found on PATH (or given as absolute paths).
type ExecRunner struct {
	// WaitDelay bounds how long a cancelled tool may keep its pipes open.
	WaitDelay time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		logger.Error("tool not found", "tool", name, "error", err)
		return nil, nil, fmt.Errorf("%s not found (is poppler-utils installed?): %w", name, err)
	}

	start := time.Now()
	logger.Debug("exec start", "tool", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, bin, args...)
	if r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		exitCode := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitCode = ee.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%s interrupted: %w", name, ctxErr)
		}
		logger.Error("exec failed",
			"tool", name,
			"exit_code", exitCode,
			"duration_ms", elapsed,
			"error", err,
			"stderr", clip(stderr.String(), stderrLogLimit),
		)
		return stdout.Bytes(), stderr.Bytes(), err
	}

	logger.Debug("exec ok",
		"tool", name,
		"duration_ms", elapsed,
		"stdout_bytes", stdout.Len(),
	)
	return stdout.Bytes(), stderr.Bytes(), nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
