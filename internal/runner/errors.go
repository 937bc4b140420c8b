package runner

import (
	"errors"
	"fmt"
)

// ErrOptionConflict is returned when the caller passes options that cannot
// be combined, such as Input together with an explicit Stdin mode, or an
// empty command.
var ErrOptionConflict = errors.New("conflicting runner options")

// ExitError reports a subprocess that exited non-zero while check mode
// was on.
type ExitError struct {
	Command Command
	Status  int
	Stderr  []byte // captured stderr, nil when stderr was not piped
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("subprocess %q failed with status %d", e.Command.String(), e.Status)
	if len(e.Stderr) > 0 {
		msg += fmt.Sprintf(", stderr: %q", e.Stderr)
	}
	return msg
}
