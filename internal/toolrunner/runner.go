// Package toolrunner isolates external subprocess invocation behind a
// narrow interface so orchestration logic can be tested against a fake
// instead of real BUSCO/DIAMOND binaries.
package toolrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrToolNotFound indicates the executable is missing from PATH. This is
// an environment misconfiguration and fatal for the whole run.
var ErrToolNotFound = errors.New("external tool not found")

// InvocationError reports a single failed invocation (non-zero exit or
// timeout). It is recoverable at the batch level: the genome is marked
// failed and the run continues.
type InvocationError struct {
	Tool     string
	ExitCode int
	Stderr   string
	TimedOut bool
}

func (e *InvocationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out", e.Tool)
	}
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Invocation describes one external tool call
type Invocation struct {
	Tool string
	Args []string
	Dir  string // working directory, "" inherits the process's

	// StdoutPath captures stdout to a file when set. DIAMOND screens
	// emit their hit table on stdout; BUSCO writes files and stdout is
	// only logged.
	StdoutPath string

	// DeclaredOutput is the path the tool is expected to create. The
	// runner does not verify it; callers check and classify absence.
	DeclaredOutput string
}

// Result is the contract surface consumed from an external tool: its
// exit status and where its output landed. Not persisted beyond the run
// that produced it except through the run store.
type Result struct {
	ExitCode       int
	StdoutPath     string
	DeclaredOutput string
	Duration       time.Duration
}

// Runner runs an external tool to completion and reports the outcome
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner runs tools as real subprocesses, blocking until exit
type ExecRunner struct {
	log *zap.Logger
}

// NewExecRunner returns a Runner backed by os/exec
func NewExecRunner(log *zap.Logger) *ExecRunner {
	return &ExecRunner{log: log}
}

// stderrTailLimit bounds how much stderr is kept for error messages
const stderrTailLimit = 4096

// Run executes the invocation and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if _, err := exec.LookPath(inv.Tool); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, inv.Tool)
	}

	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Dir = inv.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stdoutFile *os.File
	if inv.StdoutPath != "" {
		f, err := os.Create(inv.StdoutPath)
		if err != nil {
			return Result{}, fmt.Errorf("creating stdout capture file: %w", err)
		}
		stdoutFile = f
		cmd.Stdout = f
	}

	r.log.Info("running external tool",
		zap.String("tool", inv.Tool),
		zap.Strings("args", inv.Args),
		zap.String("dir", inv.Dir))

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if stdoutFile != nil {
		if cerr := stdoutFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	res := Result{
		StdoutPath:     inv.StdoutPath,
		DeclaredOutput: inv.DeclaredOutput,
		Duration:       duration,
	}

	if err == nil {
		r.log.Debug("tool finished",
			zap.String("tool", inv.Tool),
			zap.Duration("duration", duration))
		return res, nil
	}

	if ctx.Err() != nil {
		return res, &InvocationError{Tool: inv.Tool, TimedOut: true}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &InvocationError{
			Tool:     inv.Tool,
			ExitCode: exitErr.ExitCode(),
			Stderr:   tail(stderr.String()),
		}
	}

	return res, fmt.Errorf("starting %s: %w", inv.Tool, err)
}

// tail returns the last portion of stderr output, trimmed. Errors from
// bioinformatics tools usually appear at the end of long progress logs.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}
