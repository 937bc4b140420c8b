package runner

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/Sparsa/bup/internal/logging"
	"github.com/Sparsa/bup/internal/record"
)

// Logger echoes commands to a diagnostic stream before running them.
type Logger struct {
	Runner *Runner
	Out    io.Writer    // diagnostic stream; nil selects os.Stderr
	Store  record.Store // optional; receives one record per completed run
}

// NewLogger returns a Logger over r writing to out.
func NewLogger(r *Runner, out io.Writer) *Logger {
	return &Logger{Runner: r, Out: out}
}

func (l *Logger) out() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stderr
}

// LogCmd writes the rendered command followed by a newline.
func (l *Logger) LogCmd(c Command) {
	fmt.Fprintln(l.out(), c.String())
}

// Ex logs c and runs it. When the run succeeds and stderr was captured,
// the captured text is copied to the diagnostic stream as-is.
func (l *Logger) Ex(ctx context.Context, c Command, opts Options) (*Result, error) {
	l.LogCmd(c)

	r := l.Runner
	if r == nil {
		r = &Runner{}
	}
	res, err := r.Run(ctx, c, opts)
	if res != nil {
		l.save(res, err)
	}
	if err != nil {
		return res, err
	}
	if len(res.Stderr) > 0 {
		_, _ = l.out().Write(res.Stderr)
	}
	return res, nil
}

// Exo is Ex with stdout captured. Setting opts.Stdout is a contract violation.
func (l *Logger) Exo(ctx context.Context, c Command, opts Options) (*Result, error) {
	if opts.Stdout != Default {
		return nil, fmt.Errorf("%w: stdout already set to %s", ErrOptionConflict, opts.Stdout)
	}
	opts.Stdout = Pipe
	return l.Ex(ctx, c, opts)
}

func (l *Logger) save(res *Result, runErr error) {
	if l.Store == nil {
		return
	}
	if err := l.Store.Save(NewRecord(res, runErr)); err != nil {
		log := logging.OrNop(l.runnerLog())
		log.Warn().Err(err).Str(logging.FieldRunID, res.RunID).Msg("saving run record")
	}
}

// NewRecord converts a result and the error Run returned with it into
// its stored form.
func NewRecord(res *Result, runErr error) *record.Run {
	run := &record.Run{
		ID:        res.RunID,
		Command:   res.Command.String(),
		Dir:       res.Dir,
		ExitCode:  res.ExitCode,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		Truncated: res.Truncated,
		Started:   res.Started,
		Duration:  res.Duration,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return run
}

func (l *Logger) runnerLog() *zerolog.Logger {
	if l.Runner == nil {
		return nil
	}
	return l.Runner.Log
}
