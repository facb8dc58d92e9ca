// Package runner executes a resolved binary in the foreground, wiring the
// caller's standard streams through and propagating the child's exit code.
package runner

import (
	"context"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cockroachdb/errors"
)

// ErrNotExecutable marks a path that exists but cannot be run.
var ErrNotExecutable = errors.New("not executable")

// Runner runs binaries as child processes. The zero value is not usable;
// construct with New.
type Runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	env    []string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithStreams redirects the child's standard streams, primarily for tests.
func WithStreams(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithEnv replaces the environment passed to the child.
func WithEnv(env []string) Option {
	return func(r *Runner) {
		r.env = env
	}
}

// New returns a Runner attached to the process's own streams and environment.
func New(opts ...Option) *Runner {
	r := &Runner{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		env:    os.Environ(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes binPath with args and blocks until it exits, forwarding
// SIGINT and SIGTERM to the child. It returns the child's exit code; a
// non-zero exit is not an error. The error return covers failures to start
// the process at all.
func (r *Runner) Run(ctx context.Context, binPath string, args []string) (int, error) {
	if err := checkExecutable(binPath); err != nil {
		return -1, err
	}

	cmd := exec.CommandContext(ctx, binPath, args...)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.Env = r.env

	if err := cmd.Start(); err != nil {
		return -1, errors.Wrapf(err, "start %s", binPath)
	}

	// Forward interrupt-style signals so the child can shut down cleanly
	// instead of being orphaned when the parent dies.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-signals:
				_ = cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	close(done)
	signal.Stop(signals)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.Wrapf(err, "run %s", binPath)
	}
	return 0, nil
}

// checkExecutable verifies the path names a regular file the current user
// can execute.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return errors.Mark(errors.Newf("%s is not a regular file", path), ErrNotExecutable)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return errors.Mark(errors.Newf("%s is not executable", path), ErrNotExecutable)
	}
	return nil
}
