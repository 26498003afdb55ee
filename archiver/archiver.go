// Package archiver defines the capability interface every backend
// satisfies and the registry used to probe a source file against all
// registered formats at mount time.
package archiver

import (
	"io"
	"time"

	"github.com/gophysfs/gophysfs/errs"
)

// Stat is the metadata an archive can report about a path. Found
// distinguishes "not found" from "found but not a directory", which
// exists/is-directory/is-symlink/stat must all agree on.
type Stat struct {
	Found     bool
	IsDir     bool
	IsSymlink bool
	Size      int64
	ModTime   time.Time
}

// EmitFunc is called once per direct child name during Enumerate.
type EmitFunc func(name string)

// File is the backend-specific open file state. Every method may
// return errs.NotSupported if the backend cannot honor it; the VFS must
// propagate that without retrying elsewhere.
type File interface {
	io.Reader
	io.Writer
	io.Closer

	Seek(offset int64) error
	Tell() (int64, error)
	Length() (int64, error)
	EOF() bool
	Flush() error

	// Duplicate returns an independent reader positioned at 0 over the
	// same entry, for handle cloning, or errs.NotSupported if the
	// backend can't support concurrent independent readers.
	Duplicate() (File, error)
}

// Archive is an open backend instance: a directory, a flat-index
// archive, a hierarchical archive, or a streaming compressed archive.
// Every mutating method on a read-only variant must return
// errs.ReadOnlyArchive; only the directory backend supports writes.
type Archive interface {
	// Exists reports whether path exists in the archive at all,
	// without distinguishing file vs directory (use Stat for that).
	Exists(path string) bool

	// Stat returns full metadata, with Stat.Found=false if the path
	// doesn't exist.
	Stat(path string) (Stat, error)

	// Enumerate calls emit once per direct child of dir, never
	// recursing. omitSymlinks, when true, skips entries the backend
	// reports as symlinks.
	Enumerate(dir string, emit EmitFunc, omitSymlinks bool) error

	OpenRead(path string) (File, error)
	OpenWrite(path string) (File, error)
	OpenAppend(path string) (File, error)

	Remove(path string) error
	Mkdir(path string) error

	// Destroy releases all archive resources. Precondition: every File
	// this archive produced has already been closed.
	Destroy() error
}

// Probe is run against a freshly opened byte stream to decide whether a
// backend recognizes the format; it must have no side effects on
// failure.
type Probe func(r io.ReadSeeker, forWriting bool) bool

// Opener constructs an Archive from a source path once Probe succeeds.
type Opener func(sourcePath string, forWriting bool) (Archive, error)

// Backend is one registered archive format.
type Backend struct {
	Name   string
	Probe  Probe
	Open   Opener
}

var registry []Backend

// Register adds a backend to the global registry, called from each
// backend's init().
func Register(b Backend) {
	registry = append(registry, b)
}

// Registered returns the currently registered backends, in registration
// order (directory backend first by convention, then flat-index
// variants, then streaming formats).
func Registered() []Backend {
	out := make([]Backend, len(registry))
	copy(out, registry)
	return out
}

// ProbeAndOpen tries every registered backend's Probe against r in turn,
// rewinding between attempts, and opens the first one that recognizes
// the stream. Returns errs.UnsupportedArchive if none match.
func ProbeAndOpen(sourcePath string, r io.ReadSeeker, forWriting bool) (Archive, string, error) {
	for _, b := range registry {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, "", errs.Wrap(errs.IOError, "seek while probing %s: %v", sourcePath, err)
		}
		if b.Probe(r, forWriting) {
			a, err := b.Open(sourcePath, forWriting)
			if err != nil {
				// A backend that fails after probing succeeded is a
				// fatal mount failure; no further backend is tried.
				return nil, b.Name, err
			}
			return a, b.Name, nil
		}
	}
	return nil, "", errs.Wrap(errs.UnsupportedArchive, "no registered backend recognizes %s", sourcePath)
}
