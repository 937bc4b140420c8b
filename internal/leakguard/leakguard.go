// Package leakguard checks that a test scope neither inherits nor leaves
// behind entries in an error accumulator.
package leakguard

import (
	"github.com/Sparsa/bup/internal/errlog"
	"github.com/Sparsa/bup/internal/tally"
)

// Guard reports leaked accumulator entries as tally failures.
type Guard struct {
	Errors *errlog.Accumulator
	Tally  *tally.Tally
}

// New returns a Guard over errs reporting to t.
func New(errs *errlog.Accumulator, t *tally.Tally) *Guard {
	return &Guard{Errors: errs, Tally: t}
}

// Check empties the accumulator and records one failure at loc listing
// what it held, if anything. It reports whether the accumulator was empty.
func (g *Guard) Check(loc tally.Location) bool {
	errs := g.Errors.Drain()
	if len(errs) == 0 {
		return true
	}
	g.Tally.Fail(loc, "saved_errors "+errlog.Format(errs))
	return false
}

// Run checks the accumulator, runs fn, and checks it again. Both checks
// are attributed to the line that called Run. If fn panics, the panic
// propagates and the exit check is skipped.
func (g *Guard) Run(fn func()) {
	g.RunAt(tally.Caller(0), fn)
}

// RunAt is Run with an explicit location.
func (g *Guard) RunAt(loc tally.Location, fn func()) {
	g.Check(loc)
	fn()
	g.Check(loc)
}
