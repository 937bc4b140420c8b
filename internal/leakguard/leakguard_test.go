package leakguard

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Sparsa/bup/internal/errlog"
	"github.com/Sparsa/bup/internal/tally"
)

func newGuard() (*Guard, *errlog.Accumulator, *tally.Tally, *bytes.Buffer) {
	var buf bytes.Buffer
	errs := &errlog.Accumulator{}
	ty := tally.New(&buf)
	return New(errs, ty), errs, ty, &buf
}

func TestGuard_PrepopulatedOnEntry(t *testing.T) {
	g, errs, ty, buf := newGuard()
	errs.Add(errors.New("stale"))

	var sawEmpty bool
	g.Run(func() {
		sawEmpty = errs.Len() == 0
	})

	if !sawEmpty {
		t.Error("accumulator not cleared on entry")
	}
	if ty.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", ty.Failures())
	}
	if !strings.Contains(buf.String(), `saved_errors ["stale"]`) {
		t.Errorf("report = %q", buf.String())
	}
}

func TestGuard_CleanScope(t *testing.T) {
	g, errs, ty, buf := newGuard()
	g.Run(func() {})

	if ty.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0", ty.Failures())
	}
	if errs.Len() != 0 {
		t.Errorf("Len() = %d, want 0", errs.Len())
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestGuard_LeakOnExit(t *testing.T) {
	g, errs, ty, _ := newGuard()
	g.Run(func() {
		errs.Add(errors.New("leaked"))
	})

	if ty.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", ty.Failures())
	}
	if errs.Len() != 0 {
		t.Errorf("Len() after exit = %d, want 0", errs.Len())
	}
}

func TestGuard_ReportsCallerLocation(t *testing.T) {
	g, errs, _, buf := newGuard()
	g.Run(func() { errs.Addf("boom") })

	if !strings.Contains(buf.String(), "leakguard_test.go:") {
		t.Errorf("report = %q, want caller file", buf.String())
	}
}

func TestGuard_RunAtExplicitLocation(t *testing.T) {
	g, errs, _, buf := newGuard()
	errs.Addf("old")
	g.RunAt(tally.Location{File: "/x/t/tindex.py", Line: 99}, func() {})

	if !strings.HasPrefix(buf.String(), "! tindex.py:99 ") {
		t.Errorf("report = %q", buf.String())
	}
}

func TestGuard_PanicSkipsExitCheck(t *testing.T) {
	g, errs, ty, _ := newGuard()
	func() {
		defer func() { _ = recover() }()
		g.Run(func() {
			errs.Addf("during panic")
			panic("boom")
		})
	}()
	if ty.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0", ty.Failures())
	}
	if errs.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (exit check skipped)", errs.Len())
	}
}

func TestGuard_CheckLosesNothingUnderConcurrentAdds(t *testing.T) {
	g, errs, _, buf := newGuard()
	loc := tally.Location{File: "x.go", Line: 1}

	stop := make(chan struct{})
	added := make(chan int)
	go func() {
		n := 0
		for {
			select {
			case <-stop:
				added <- n
				return
			default:
				errs.Addf("e")
				n++
			}
		}
	}()
	for i := 0; i < 2000; i++ {
		g.Check(loc)
	}
	close(stop)
	n := <-added

	reported := strings.Count(buf.String(), `"e"`)
	remaining := errs.Len()
	if n != reported+remaining {
		t.Errorf("added=%d reported=%d remaining=%d, lost %d", n, reported, remaining, n-reported-remaining)
	}
}
