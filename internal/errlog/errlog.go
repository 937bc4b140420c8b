// Package errlog provides an injectable accumulator for errors that
// helpers record instead of returning, so a test scope can check that
// none were left behind.
package errlog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Accumulator is a list of recorded errors. The zero value is empty and
// ready to use. It is safe for concurrent use.
type Accumulator struct {
	mu   sync.Mutex
	errs []error
}

// Add records err. Nil errors are ignored.
func (a *Accumulator) Add(err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = append(a.errs, err)
}

// Addf records a formatted error.
func (a *Accumulator) Addf(format string, args ...any) {
	a.Add(fmt.Errorf(format, args...))
}

// Len returns the number of recorded errors.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errs)
}

// Errors returns a copy of the recorded errors.
func (a *Accumulator) Errors() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]error(nil), a.errs...)
}

// Err joins the recorded errors, or returns nil when there are none.
func (a *Accumulator) Err() error {
	return errors.Join(a.Errors()...)
}

// Drain returns the recorded errors and empties the accumulator in one
// step, so nothing added concurrently is lost between the two.
func (a *Accumulator) Drain() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	errs := a.errs
	a.errs = nil
	return errs
}

// Clear discards all recorded errors.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = nil
}

// String renders the recorded messages as a quoted list, e.g. ["a" "b"].
func (a *Accumulator) String() string {
	return Format(a.Errors())
}

// Format renders errs the way String does.
func Format(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = strconv.Quote(err.Error())
	}
	return "[" + strings.Join(parts, " ") + "]"
}
