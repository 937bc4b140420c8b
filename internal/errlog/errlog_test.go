package errlog

import (
	"errors"
	"testing"
)

func TestAccumulator_AddAndClear(t *testing.T) {
	var a Accumulator
	if a.Len() != 0 || a.Err() != nil {
		t.Fatal("zero value should be empty")
	}

	a.Add(errors.New("first"))
	a.Add(nil)
	a.Addf("second %d", 2)
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	if got := a.String(); got != `["first" "second 2"]` {
		t.Errorf("String() = %s", got)
	}
	if a.Err() == nil {
		t.Error("Err() = nil, want joined error")
	}

	a.Clear()
	if a.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", a.Len())
	}
	if a.String() != "[]" {
		t.Errorf("String() after Clear = %s", a.String())
	}
}

func TestAccumulator_ErrorsIsCopy(t *testing.T) {
	var a Accumulator
	a.Add(errors.New("x"))
	errs := a.Errors()
	errs[0] = nil
	if a.Errors()[0] == nil {
		t.Error("Errors() exposed internal slice")
	}
}

func TestAccumulator_Drain(t *testing.T) {
	var a Accumulator
	if got := a.Drain(); len(got) != 0 {
		t.Fatalf("Drain() on empty = %v", got)
	}

	a.Addf("one")
	a.Addf("two")
	got := a.Drain()
	if len(got) != 2 || got[0].Error() != "one" || got[1].Error() != "two" {
		t.Errorf("Drain() = %v, want [one two]", got)
	}
	if a.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", a.Len())
	}
	if Format(got) != `["one" "two"]` {
		t.Errorf("Format = %q", Format(got))
	}
}
