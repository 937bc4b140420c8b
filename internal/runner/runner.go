// Package runner executes test subprocesses with optional input, captured
// output, and an exit-status contract, and echoes what it runs to a
// diagnostic stream.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sparsa/bup/internal/logging"
)

// Stream selects what a child's standard stream is connected to.
type Stream int

const (
	// Default inherits the stream and counts as "not set by the caller".
	Default Stream = iota
	// Inherit connects the stream to the runner's own.
	Inherit
	// Pipe captures the stream (or feeds stdin from memory).
	Pipe
	// Discard connects the stream to the null device.
	Discard
)

func (s Stream) String() string {
	switch s {
	case Default:
		return "default"
	case Inherit:
		return "inherit"
	case Pipe:
		return "pipe"
	case Discard:
		return "discard"
	}
	return fmt.Sprintf("Stream(%d)", int(s))
}

// Options are the per-invocation spawn options.
type Options struct {
	Dir   string            // working directory; empty inherits
	Env   map[string]string // merged over the parent environment, values as given
	Unset []string          // removed from the environment after Env is applied
	Input []byte            // fed to stdin; conflicts with an explicit Stdin

	Stdin  Stream
	Stdout Stream
	Stderr Stream

	// NoCheck disables the non-zero exit check.
	NoCheck bool
}

// Runner executes commands. The zero value is ready to use: no timeout,
// unlimited capture, inherited streams bound to the process's own.
type Runner struct {
	Timeout   time.Duration // 0 means no timeout
	MaxOutput int           // per-stream capture cap in bytes; 0 means unlimited

	// Targets for inherited streams. Nil selects os.Stdin/os.Stdout/os.Stderr.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Log *zerolog.Logger
}

// Run executes cmd and waits for it to exit. Input is written while
// stdout and stderr are drained, each on its own goroutine, so a child
// that fills an output pipe before consuming its input cannot deadlock
// the runner.
//
// Contract violations, spawn failures, and runs cut short by the timeout
// or by ctx return a nil Result. When check
// mode is on and the child exits non-zero, Run returns the Result together
// with an *ExitError; with NoCheck it returns the Result and nil.
func (r *Runner) Run(ctx context.Context, c Command, opts Options) (*Result, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if len(opts.Input) > 0 && opts.Stdin != Default {
		return nil, fmt.Errorf("%w: input given with explicit stdin (%s)", ErrOptionConflict, opts.Stdin)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()
	log := logging.OrNop(r.Log)

	cmd := c.exec(ctx)
	cmd.Dir = opts.Dir
	cmd.Env = mergeEnv(os.Environ(), opts.Env, opts.Unset)
	cmd.Stdin = r.source(opts)

	var stdout, stderr *limitWriter
	cmd.Stdout, stdout = r.sink(opts.Stdout, r.Stdout, os.Stdout)
	cmd.Stderr, stderr = r.sink(opts.Stderr, r.Stderr, os.Stderr)

	log.Debug().Str(logging.FieldRunID, runID).Str("cmd", c.String()).Msg("starting")

	started := time.Now()
	runErr := cmd.Run()
	duration := time.Since(started)

	if runErr != nil && ctx.Err() != nil {
		// Killed for the timeout or a cancelled caller, not a real exit.
		return nil, fmt.Errorf("executing %s: %w", c.Name(), ctx.Err())
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) || cmd.ProcessState == nil {
			// Binary not found, bad working directory, or other exec error.
			return nil, fmt.Errorf("executing %s: %w", c.Name(), runErr)
		}
	}

	res := &Result{
		RunID:     runID,
		Command:   c,
		Dir:       opts.Dir,
		Stdout:    stdout.captured(),
		Stderr:    stderr.captured(),
		Process:   cmd.ProcessState,
		ExitCode:  exitCode(cmd.ProcessState),
		Started:   started,
		Duration:  duration,
		Truncated: stdout.truncated() || stderr.truncated(),
	}

	log.Debug().
		Str(logging.FieldRunID, runID).
		Int(logging.FieldExitCode, res.ExitCode).
		Dur("duration", duration).
		Msg("finished")

	if !opts.NoCheck && res.ExitCode != 0 {
		return res, &ExitError{Command: c, Status: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

func (r *Runner) source(opts Options) io.Reader {
	if len(opts.Input) > 0 {
		return bytes.NewReader(opts.Input)
	}
	switch opts.Stdin {
	case Pipe:
		// Nothing to write: the child sees EOF immediately.
		return bytes.NewReader(nil)
	case Discard:
		return nil
	}
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r *Runner) sink(mode Stream, inherit io.Writer, fallback *os.File) (io.Writer, *limitWriter) {
	switch mode {
	case Pipe:
		w := &limitWriter{limit: r.MaxOutput}
		return w, w
	case Discard:
		return nil, nil
	}
	if inherit != nil {
		return inherit, nil
	}
	return fallback, nil
}

// exitCode mirrors the convention of reporting a signal death as the
// negated signal number.
func exitCode(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}

// mergeEnv applies overrides to base and then drops the unset names. It
// returns nil, meaning "inherit", when there is nothing to change.
func mergeEnv(base []string, overrides map[string]string, unset []string) []string {
	if len(overrides) == 0 && len(unset) == 0 {
		return nil
	}
	env := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range overrides {
		env[k] = v
	}
	for _, k := range unset {
		delete(env, k)
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// limitWriter captures up to limit bytes (unlimited when limit is 0) and
// silently discards the rest.
type limitWriter struct {
	buf     bytes.Buffer
	limit   int
	dropped bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.dropped = true
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.dropped = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

// captured returns a copy of the captured bytes, empty but non-nil for a
// piped stream that produced nothing, and nil for a stream that was not piped.
func (w *limitWriter) captured() []byte {
	if w == nil {
		return nil
	}
	return append([]byte{}, w.buf.Bytes()...)
}

func (w *limitWriter) truncated() bool {
	return w != nil && w.dropped
}
