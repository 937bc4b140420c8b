package runner

import (
	"os"
	"time"
)

// Result holds the outcome of a single command execution.
// The runner never modifies a Result after returning it.
type Result struct {
	RunID     string           // unique identifier for this run
	Command   Command          // what was run
	Dir       string           // working directory, empty when inherited
	Stdout    []byte           // captured stdout; nil unless piped
	Stderr    []byte           // captured stderr; nil unless piped
	Process   *os.ProcessState // state of the exited process
	ExitCode  int              // exit status; -N when killed by signal N
	Started   time.Time
	Duration  time.Duration
	Truncated bool // true if a capture exceeded the size cap
}

// Success reports whether the process exited zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}
