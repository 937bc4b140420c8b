package record

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// countingStore is an in-memory Store that counts backing loads.
type countingStore struct {
	runs  map[string]*Run
	loads int
}

func newCountingStore() *countingStore {
	return &countingStore{runs: make(map[string]*Run)}
}

func (s *countingStore) Save(run *Run) error {
	s.runs[run.ID] = run
	return nil
}

func (s *countingStore) Load(runID string) (*Run, error) {
	s.loads++
	run, ok := s.runs[runID]
	if !ok {
		return nil, errors.New("not found")
	}
	return run, nil
}

func TestDiskStore_SaveLoad(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	want := &Run{
		ID:       "run-1",
		Command:  "echo 'a b'",
		ExitCode: 3,
		Stderr:   []byte("boom\n"),
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Command != want.Command || got.ExitCode != 3 || string(got.Stderr) != "boom\n" {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
	if !got.Started.Equal(want.Started) || got.Duration != want.Duration {
		t.Errorf("timing = %v/%v, want %v/%v", got.Started, got.Duration, want.Started, want.Duration)
	}
}

func TestDiskStore_LazyTempDir(t *testing.T) {
	s := NewDiskStore("")
	if err := s.Save(&Run{ID: "lazy"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	dir, err := s.Dir()
	if err != nil {
		t.Fatal(err)
	}
	if dir == "" {
		t.Fatal("Dir() is empty")
	}
	if _, err := s.Load("lazy"); err != nil {
		t.Errorf("Load: %v", err)
	}
}

func TestDiskStore_RejectsPathIDs(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	if _, err := s.Load("../etc/passwd"); err == nil {
		t.Error("expected error for path-like run id")
	}
	if _, err := s.Load(""); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestLRUStore_HitAvoidsBackingLoad(t *testing.T) {
	back := newCountingStore()
	s := NewLRUStore(2, back)
	if err := s.Save(&Run{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0", back.loads)
	}
}

func TestLRUStore_Eviction(t *testing.T) {
	back := newCountingStore()
	s := NewLRUStore(2, back)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(&Run{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	// "a" was evicted; loading it goes to the backing store.
	if _, err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}
	// Promoting "a" evicted "b".
	if _, err := s.Load("b"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 2 {
		t.Errorf("backing loads = %d, want 2", back.loads)
	}
}

func TestLRUStore_MissingRun(t *testing.T) {
	s := NewLRUStore(1, newCountingStore())
	if _, err := s.Load("nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestFormat(t *testing.T) {
	out := Format(&Run{
		ID:       "r1",
		Command:  "false",
		ExitCode: 1,
		Stderr:   []byte("line one\nline two\n"),
	})
	for _, want := range []string{"Run: r1 (FAILED)", "Command: false", "Exit code: 1", "Stderr:", "    line two"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Stdout:") {
		t.Errorf("empty stdout should be omitted:\n%s", out)
	}
}
