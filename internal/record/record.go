// Package record persists one entry per harness subprocess invocation so a
// run can be looked up after the fact by its run ID.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Store persists and retrieves run records.
type Store interface {
	Save(run *Run) error
	Load(runID string) (*Run, error)
}

// Run is the stored form of a subprocess result.
type Run struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"` // shell-quoted rendering
	Dir       string        `json:"dir,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Stdout    []byte        `json:"stdout,omitempty"`
	Stderr    []byte        `json:"stderr,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Failed reports whether the process exited non-zero.
func (r *Run) Failed() bool {
	return r.ExitCode != 0
}

// Format renders r for humans.
func Format(r *Run) string {
	var b strings.Builder

	status := "ok"
	if r.Failed() {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "Run: %s (%s)\n", r.ID, status)
	fmt.Fprintf(&b, "Command: %s\n", r.Command)
	if r.Dir != "" {
		fmt.Fprintf(&b, "Dir: %s\n", r.Dir)
	}
	fmt.Fprintf(&b, "Exit code: %d\n", r.ExitCode)
	if !r.Started.IsZero() {
		fmt.Fprintf(&b, "Started: %s (%s)\n", r.Started.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}
	writeStream(&b, "Stdout", r.Stdout)
	writeStream(&b, "Stderr", r.Stderr)
	if r.Truncated {
		fmt.Fprintln(&b, "(output truncated)")
	}
	return b.String()
}

func writeStream(b *strings.Builder, name string, data []byte) {
	if len(data) == 0 {
		return
	}
	fmt.Fprintln(b)
	fmt.Fprintf(b, "%s:\n", name)
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
