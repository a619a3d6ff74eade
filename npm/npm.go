// Package npm runs the npm commands that produce the dependency tree and the
// audit report for a project directory.
package npm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ortelius/depchain/loader"
	"github.com/ortelius/depchain/model"
	"go.uber.org/zap"
)

// Exit codes reported for failures that never reached npm
const (
	ExitTimeout  = 124
	ExitNotFound = 127
)

// Result holds the execution result.
type Result struct {
	Stdout   []byte
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// Runner executes npm in a project directory
type Runner struct {
	Binary string
	Dir    string
	Logger *zap.Logger
}

// NewRunner creates a Runner for the project in dir
func NewRunner(dir string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Binary: "npm", Dir: dir, Logger: logger}
}

// Run executes the binary with args, capturing output and duration.
// A timeout is reported as exit code 124 and a missing binary as 127.
func (r *Runner) Run(ctx context.Context, args ...string) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			res.ExitCode = ExitTimeout
		case errors.Is(err, exec.ErrNotFound):
			res.ExitCode = ExitNotFound
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		default:
			res.ExitCode = 1
		}
	}

	r.Logger.Debug("npm finished",
		zap.Strings("args", args),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))

	return res, err
}

// runJSON runs a command whose JSON output is meaningful even on a non-zero
// exit: npm ls fails on extraneous packages and npm audit fails when it
// finds vulnerabilities.
func (r *Runner) runJSON(ctx context.Context, args ...string) ([]byte, error) {
	res, err := r.Run(ctx, args...)
	if res.ExitCode == ExitTimeout || res.ExitCode == ExitNotFound {
		return nil, fmt.Errorf("npm %s failed execution (code %d): %w", args[0], res.ExitCode, err)
	}
	if len(bytes.TrimSpace(res.Stdout)) == 0 {
		if err != nil {
			return nil, fmt.Errorf("npm %s produced no output: %w: %s", args[0], err, res.Stderr)
		}
		return nil, fmt.Errorf("npm %s produced no output", args[0])
	}
	return res.Stdout, nil
}

// Tree runs `npm ls --all --json` and decodes the dependency tree
func (r *Runner) Tree(ctx context.Context) (*model.DependencyNode, error) {
	out, err := r.runJSON(ctx, "ls", "--all", "--json")
	if err != nil {
		return nil, err
	}
	return loader.ParseTree(out)
}

// Audit runs `npm audit --json` and decodes the report
func (r *Runner) Audit(ctx context.Context) (*model.AuditReport, error) {
	out, err := r.runJSON(ctx, "audit", "--json")
	if err != nil {
		return nil, err
	}
	return loader.ParseAudit(out)
}
