// Package scratch provides per-test scratch directories under a shared
// root. A directory is removed when its scope ends cleanly and kept for
// inspection when the scope recorded new failures.
package scratch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sparsa/bup/internal/logging"
)

// FailureCounter reports how many test failures have been recorded.
// *tally.Tally satisfies it.
type FailureCounter interface {
	Failures() int
}

// Root is the directory under which scratch directories are created.
type Root struct {
	Path       string
	KeepAlways bool // keep directories even after clean scopes
	Log        *zerolog.Logger
}

// EnsureRoot creates path if needed and returns a Root for it. An
// existing directory is not an error.
func EnsureRoot(path string) (*Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving scratch root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch root: %w", err)
	}
	// Resolve symlinks so reported paths match what children see as cwd.
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &Root{Path: abs}, nil
}

// Dir is a scratch directory bound to the failure count at creation.
type Dir struct {
	Path string

	root    *Root
	counter FailureCounter
	initial int
	closed  bool
	kept    bool
}

// TempDir creates a uniquely named directory whose name starts with prefix.
func (r *Root) TempDir(prefix string, counter FailureCounter) (*Dir, error) {
	if strings.ContainsRune(prefix, filepath.Separator) {
		return nil, fmt.Errorf("scratch prefix %q contains a path separator", prefix)
	}
	// Sample before creating so a failure during creation still counts.
	initial := counter.Failures()
	if err := os.MkdirAll(r.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch root: %w", err)
	}
	path, err := os.MkdirTemp(r.Path, prefix)
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	return &Dir{Path: path, root: r, counter: counter, initial: initial}, nil
}

// Close ends the directory's scope. If no failures were recorded since it
// was created, permissions are relaxed and the tree is removed; otherwise
// it is left in place. Close is idempotent.
func (d *Dir) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	log := logging.OrNop(d.root.Log)
	failures := d.counter.Failures() - d.initial
	if failures != 0 || d.root.KeepAlways {
		d.kept = true
		log.Warn().
			Str(logging.FieldPath, d.Path).
			Int("new_failures", failures).
			Msg("keeping scratch directory")
		return nil
	}

	if err := RelaxPermissions(d.Path); err != nil {
		return err
	}
	if err := os.RemoveAll(d.Path); err != nil {
		return fmt.Errorf("removing scratch directory: %w", err)
	}
	log.Debug().Str(logging.FieldPath, d.Path).Msg("removed scratch directory")
	return nil
}

// Kept reports whether Close left the directory in place.
func (d *Dir) Kept() bool { return d.kept }

// With creates a scratch directory, passes it to fn, and closes it when fn
// returns. The error from fn takes precedence over the error from Close.
func (r *Root) With(prefix string, counter FailureCounter, fn func(dir string) error) (err error) {
	d, err := r.TempDir(prefix, counter)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(d.Path)
}

// RelaxPermissions gives the owner read and write access to everything
// under path, plus execute access on directories and on files that are
// executable by anyone. Symlinks are left alone.
func RelaxPermissions(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mode := info.Mode().Perm() | 0o600
		if d.IsDir() || info.Mode().Perm()&0o111 != 0 {
			mode |= 0o100
		}
		if mode == info.Mode().Perm() {
			return nil
		}
		// Directories are visited before their entries are read, so
		// fixing one here lets the walk descend into it.
		if err := os.Chmod(p, mode); err != nil {
			return fmt.Errorf("relaxing permissions: %w", err)
		}
		return nil
	})
}

// Entry describes a directory found under a scratch root.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Retained lists directories currently under the root, oldest first.
// Directories of running scopes are included; entries whose names start
// with a dot are not scratch directories and are skipped.
func (r *Root) Retained() ([]Entry, error) {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, fmt.Errorf("reading scratch root: %w", err)
	}
	var out []Entry
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:    e.Name(),
			Path:    filepath.Join(r.Path, e.Name()),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.Before(out[j].ModTime) })
	return out, nil
}

// Remove deletes the named scratch directory under the root.
func (r *Root) Remove(name string) error {
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid scratch directory name %q", name)
	}
	path := filepath.Join(r.Path, name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("scratch directory %s: %w", name, err)
	}
	if err := RelaxPermissions(path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing scratch directory: %w", err)
	}
	return nil
}
