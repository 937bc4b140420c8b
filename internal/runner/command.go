package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
)

// Command is either a pre-formed shell line or an argument vector.
// Build one with Line or Argv.
type Command struct {
	line   string
	argv   []string
	isLine bool
}

// Argv returns a command that executes args[0] with args[1:].
func Argv(args ...string) Command {
	return Command{argv: append([]string(nil), args...)}
}

// Line returns a command that is handed to /bin/sh -c verbatim.
func Line(line string) Command {
	return Command{line: line, isLine: true}
}

// IsLine reports whether c is a shell line.
func (c Command) IsLine() bool { return c.isLine }

// Args returns a copy of the argument vector. It is nil for a shell line.
func (c Command) Args() []string {
	if c.isLine {
		return nil
	}
	return append([]string(nil), c.argv...)
}

// String renders the command for the diagnostic stream: a shell line
// verbatim, an argument vector with each token shell-quoted and joined by
// single spaces.
func (c Command) String() string {
	if c.isLine {
		return c.line
	}
	return shellescape.QuoteCommand(c.argv)
}

// Name returns the program the command runs.
func (c Command) Name() string {
	if c.isLine {
		return "sh"
	}
	if len(c.argv) == 0 {
		return ""
	}
	return c.argv[0]
}

func (c Command) validate() error {
	if c.isLine {
		if strings.TrimSpace(c.line) == "" {
			return fmt.Errorf("%w: empty command line", ErrOptionConflict)
		}
		return nil
	}
	if len(c.argv) == 0 {
		return fmt.Errorf("%w: empty argv", ErrOptionConflict)
	}
	return nil
}

func (c Command) exec(ctx context.Context) *exec.Cmd {
	if c.isLine {
		return exec.CommandContext(ctx, "/bin/sh", "-c", c.line)
	}
	return exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
}
