package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/Sparsa/bup/internal/config"
)

var defaultRoot struct {
	once sync.Once
	root *Root
	err  error
}

// DefaultRoot returns the process-wide scratch root, resolving and
// creating it on first use: <repo-root>/t/tmp unless .buptest says
// otherwise, where the repo root is found by walking up from the working
// directory to go.mod.
func DefaultRoot() (*Root, error) {
	defaultRoot.once.Do(func() {
		defaultRoot.root, defaultRoot.err = resolveDefault()
	})
	return defaultRoot.root, defaultRoot.err
}

func resolveDefault() (*Root, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(wd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if !loaded.InModule {
		src, ok := sourceRoot()
		if !ok {
			return nil, fmt.Errorf("no go.mod above %s", wd)
		}
		if loaded, err = config.Load(src); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	return FromConfig(loaded)
}

// sourceRoot returns the module root this package was built from, when
// that source tree is still on disk.
func sourceRoot() (string, bool) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}
	root, err := config.FindRepoRoot(filepath.Dir(file))
	return root, err == nil
}

// FromConfig creates the scratch root described by a loaded config. A
// relative scratch directory needs a module root to anchor it; without one
// FromConfig fails rather than create it under an arbitrary directory.
func FromConfig(loaded *config.LoadResult) (*Root, error) {
	if !loaded.InModule && !filepath.IsAbs(loaded.Config.Scratch.Dir) {
		return nil, fmt.Errorf("no go.mod above %s: not creating a scratch root there", loaded.RepoRoot)
	}
	root, err := EnsureRoot(loaded.Config.ScratchDir(loaded.RepoRoot))
	if err != nil {
		return nil, err
	}
	root.KeepAlways = loaded.Config.KeepAlways()
	return root, nil
}

// tbCounter counts a testing.TB as one failure once it has failed.
type tbCounter struct {
	tb testing.TB
}

func (c tbCounter) Failures() int {
	if c.tb.Failed() {
		return 1
	}
	return 0
}

// Testing creates a scratch directory under DefaultRoot for tb and
// registers its removal with tb.Cleanup. The directory is kept if tb has
// failed by the time cleanup runs.
func Testing(tb testing.TB, prefix string) string {
	tb.Helper()
	root, err := DefaultRoot()
	if err != nil {
		tb.Fatalf("scratch root: %v", err)
	}
	return root.Testing(tb, prefix)
}

// Testing is the Root-specific form of the package-level Testing.
func (r *Root) Testing(tb testing.TB, prefix string) string {
	tb.Helper()
	d, err := r.TempDir(prefix, tbCounter{tb})
	if err != nil {
		tb.Fatalf("scratch dir: %v", err)
	}
	tb.Cleanup(func() {
		if err := d.Close(); err != nil {
			tb.Errorf("closing scratch dir: %v", err)
		}
		if d.Kept() {
			tb.Logf("scratch directory kept: %s", d.Path)
		}
	})
	return d.Path
}
