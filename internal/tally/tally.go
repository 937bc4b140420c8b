// Package tally counts test check outcomes and prints them in the
// wvtest line format used by the backup tool's test suite:
//
//	! file.go:12   message                                           ok
//	! file.go:40   saved_errors ["boom"]                             FAILED
package tally

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Location is a source position reported with a check line.
type Location struct {
	File string
	Line int
}

// Caller returns the location of the caller of the function that calls
// Caller, skipping skip additional frames.
func Caller(skip int) Location {
	_, file, line, ok := runtime.Caller(skip + 2)
	if !ok {
		return Location{File: "???"}
	}
	return Location{File: file, Line: line}
}

// String renders the location as basename:line, with the line number
// left-aligned in a four-character column.
func (l Location) String() string {
	return fmt.Sprintf("%s:%-4d", filepath.Base(l.File), l.Line)
}

// Tally counts passes and failures. It is safe for concurrent use.
type Tally struct {
	mu       sync.Mutex
	out      io.Writer
	passes   int
	failures int
}

// New returns a Tally printing check lines to out. A nil out selects os.Stderr.
func New(out io.Writer) *Tally {
	if out == nil {
		out = os.Stderr
	}
	return &Tally{out: out}
}

// Failures returns the number of failures recorded so far.
func (t *Tally) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// Passes returns the number of passes recorded so far.
func (t *Tally) Passes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.passes
}

// Pass records a passing check.
func (t *Tally) Pass(loc Location, msg string) {
	t.record(loc, msg, true)
}

// Fail records a failing check.
func (t *Tally) Fail(loc Location, msg string) {
	t.record(loc, msg, false)
}

// Check records a pass when cond holds and a failure otherwise, and
// returns cond.
func (t *Tally) Check(loc Location, cond bool, msg string) bool {
	t.record(loc, msg, cond)
	return cond
}

func (t *Tally) record(loc Location, msg string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	verdict := "ok"
	if ok {
		t.passes++
	} else {
		t.failures++
		verdict = "FAILED"
	}
	fmt.Fprintf(t.out, "! %-70s %s\n", loc.String()+" "+msg, verdict)
}
