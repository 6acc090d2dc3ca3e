package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

var (
	// ErrToolNotFound is returned when the binary is neither in the tool
	// directory nor on PATH.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolTimeout is returned when a run exceeds its deadline.
	ErrToolTimeout = errors.New("tool timed out")
)

// Result is the captured output of a finished tool run.
type Result struct {
	Path     string
	Args     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner locates and executes external scanner binaries.
// Each run gets its own process group, which is killed as a whole when the
// deadline passes so no orphaned children survive.
type Runner struct {
	toolDir  string
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithToolDir sets the directory searched before PATH.
func WithToolDir(dir string) Option {
	return func(r *Runner) {
		r.toolDir = dir
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLookPath replaces exec.LookPath. Tests use it to hide real binaries.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(r *Runner) {
		r.lookPath = fn
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Find resolves a tool name to an executable path: the tool directory
// first, then PATH.
func (r *Runner) Find(name string) (string, error) {
	if r.toolDir != "" {
		candidate := filepath.Join(r.toolDir, name)
		if runtime.GOOS == "windows" && !strings.HasSuffix(candidate, ".exe") {
			candidate += ".exe"
		}
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	path, err := r.lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return path, nil
}

// Available reports whether Find would succeed.
func (r *Runner) Available(name string) bool {
	_, err := r.Find(name)
	return err == nil
}

// Run executes the named tool with args and a deadline.
// A non-zero exit status is not an error: scanners commonly exit non-zero
// when they report findings. The caller inspects Result.ExitCode.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error) {
	path, err := r.Find(name)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, path, args...) //nolint:gosec // tool path resolved from a fixed name
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureCommandProcess(cmd)
	cmd.Cancel = func() error {
		terminateCommandProcess(cmd)
		return nil
	}
	cmd.WaitDelay = time.Second

	r.logger.Debug("running tool", "tool", name, "path", path, "args", strings.Join(args, " "), "timeout", timeout)

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Path:     path,
		Args:     args,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("tool timed out", "tool", name, "timeout", timeout)
		return result, fmt.Errorf("%w: %s after %s", ErrToolTimeout, name, timeout)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return result, fmt.Errorf("failed to run %s: %w", name, runErr)
	}

	r.logger.Debug("tool finished", "tool", name, "exit_code", result.ExitCode, "duration", result.Duration)
	return result, nil
}

// Lines splits output into trimmed, non-empty lines.
func Lines(out []byte) []string {
	raw := strings.Split(string(out), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}
