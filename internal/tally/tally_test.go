package tally

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestTally_Counts(t *testing.T) {
	var buf bytes.Buffer
	ty := New(&buf)
	loc := Location{File: "/src/t/test_index.py", Line: 7}

	ty.Pass(loc, "first")
	ty.Fail(loc, "second")
	if ty.Check(loc, false, "third") {
		t.Error("Check(false) returned true")
	}

	if ty.Passes() != 1 || ty.Failures() != 2 {
		t.Errorf("passes/failures = %d/%d, want 1/2", ty.Passes(), ty.Failures())
	}
}

func TestTally_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	ty := New(&buf)
	ty.Fail(Location{File: "/a/b/leak_test.go", Line: 12}, "saved_errors")

	line := strings.TrimSuffix(buf.String(), "\n")
	if !strings.HasPrefix(line, "! leak_test.go:12   saved_errors") {
		t.Errorf("line = %q", line)
	}
	if !strings.HasSuffix(line, " FAILED") {
		t.Errorf("line = %q, want FAILED suffix", line)
	}
	// "! " + 70-column field + " " + verdict
	if len(line) != 2+70+1+len("FAILED") {
		t.Errorf("len(line) = %d, want padded to 70 columns", len(line))
	}
}

func TestCaller(t *testing.T) {
	loc := helperCaller()
	if !strings.HasSuffix(loc.File, "tally_test.go") {
		t.Errorf("File = %q, want tally_test.go", loc.File)
	}
	if loc.Line == 0 {
		t.Error("Line = 0")
	}
}

// helperCaller reports the location of its own caller.
func helperCaller() Location {
	return Caller(0)
}

func TestTally_Concurrent(t *testing.T) {
	ty := New(&bytes.Buffer{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ty.Fail(Location{File: "x.go", Line: 1}, "boom")
		}()
	}
	wg.Wait()
	if ty.Failures() != 50 {
		t.Errorf("Failures() = %d, want 50", ty.Failures())
	}
}
