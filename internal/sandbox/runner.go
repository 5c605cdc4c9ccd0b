// Package sandbox executes untrusted generated code in a subprocess with a
// hard wall-clock limit. Only a Python runner is provided; the Runner
// interface admits other languages without committing to them.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"screensage/internal/logging"
	"screensage/internal/types"
)

// ErrUnsupportedLanguage is returned for languages the runner cannot
// execute.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrRunnerUnavailable is returned when the interpreter binary is missing.
var ErrRunnerUnavailable = errors.New("runner unavailable")

// RunResult captures one sandboxed execution. Stdout has its trailing
// newline stripped.
type RunResult struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exit_code"`
	ElapsedMs int64  `json:"elapsed_ms"`
	TimedOut  bool   `json:"timed_out"`
}

// Runner executes code with stdin under a time limit.
type Runner interface {
	Run(ctx context.Context, language types.Language, code, stdin string, timeLimit time.Duration) (*RunResult, error)
}

// PythonRunner executes Python code via the python3 binary in a temp
// directory.
type PythonRunner struct {
	Binary string
}

// NewPythonRunner creates a runner using the given binary ("python3" when
// empty).
func NewPythonRunner(binary string) *PythonRunner {
	if binary == "" {
		binary = "python3"
	}
	return &PythonRunner{Binary: binary}
}

// Run writes the code to a temp file and executes it. A deadline overrun
// reports TimedOut rather than an error; only an unsupported language and
// environment-level failures (missing interpreter, unwritable temp dir)
// return an error.
func (r *PythonRunner) Run(ctx context.Context, language types.Language, code, stdin string, timeLimit time.Duration) (*RunResult, error) {
	if language != types.LangPython {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	if _, err := exec.LookPath(r.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrRunnerUnavailable, r.Binary)
	}

	dir, err := os.MkdirTemp("", "screensage-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunnerUnavailable, err)
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "solution.py")
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunnerUnavailable, err)
	}

	if timeLimit <= 0 {
		timeLimit = 5 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeLimit)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Binary, script)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := &RunResult{
		Stdout:    strings.TrimRight(stdout.String(), "\n"),
		Stderr:    stderr.String(),
		ElapsedMs: elapsed.Milliseconds(),
		TimedOut:  runCtx.Err() == context.DeadlineExceeded,
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else if !result.TimedOut {
			return nil, fmt.Errorf("%w: %v", ErrRunnerUnavailable, runErr)
		}
		if result.TimedOut {
			result.ExitCode = -1
			logging.Get(logging.CategoryValidator).Warn("execution timed out after %v", timeLimit)
		}
	}

	logging.Get(logging.CategoryValidator).Debug("ran %s in %dms (exit=%d, timed_out=%v)",
		r.Binary, result.ElapsedMs, result.ExitCode, result.TimedOut)
	return result, nil
}
