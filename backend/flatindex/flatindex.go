// Package flatindex implements the shared build-and-lookup engine for
// the binary-sorted flat-index archive formats: GRP, HOG, WAD and PAK
// (Quake). Each format's header parser lives in its own file and
// produces an []Entry; this file owns the sort, binary search, and the
// generic archiver.Archive/archiver.File built on top of the resulting
// table, wrapping each format-specific reader behind one common
// abstraction.
package flatindex

import (
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gophysfs/gophysfs/archiver"
	"github.com/gophysfs/gophysfs/errs"
)

// Entry is a single flat-index table row: a fixed-width name, an
// absolute byte offset into the archive stream, and an uncompressed
// size. Entries are immutable after mount.
type Entry struct {
	Name  string
	Start int64
	Size  int64
}

// compareASCIIFold compares two strings case-insensitively, ASCII only,
// deliberately avoiding any locale-aware fold — these archive formats
// were built against byte values, not Unicode case rules. No pack
// library offers an ASCII-restricted fold (strings.EqualFold is
// Unicode-aware), so this is hand-rolled and documented in DESIGN.md.
func compareASCIIFold(a, b string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ca, cb := foldByte(a[i]), foldByte(b[i])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// CompareASCIIFold exposes compareASCIIFold for other backends (the
// hierarchical backend) that need the identical ASCII-only ordering
// over full path names rather than single fixed-width names.
func CompareASCIIFold(a, b string) int { return compareASCIIFold(a, b) }

func foldByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}

// Sort orders entries ascending by case-insensitive ASCII name
// comparison, the ordering Lookup's binary search depends on: for any
// i1 < i2, compareASCIIFold(entries[i1].Name, entries[i2].Name) <= 0.
//
// The original GRP loader's sort is quicksort that falls back to
// insertion sort below a size threshold it never actually reaches
// (the guard looks inverted); this implementation just sorts once with
// sort.Slice.
func Sort(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return compareASCIIFold(entries[i].Name, entries[j].Name) < 0
	})
}

// Lookup binary-searches a sorted entry table for name. Names containing
// '/' or longer than nameLimit are rejected as errs.NoSuchFile without
// searching the array — these formats have no directory concept, so a
// slash can never denote a real entry.
func Lookup(entries []Entry, name string, nameLimit int) (Entry, error) {
	if strings.ContainsRune(name, '/') || len(name) > nameLimit {
		return Entry{}, errs.Wrap(errs.NoSuchFile, "%q is not a valid flat-index name", name)
	}
	i := sort.Search(len(entries), func(i int) bool {
		return compareASCIIFold(entries[i].Name, name) >= 0
	})
	if i < len(entries) && compareASCIIFold(entries[i].Name, name) == 0 {
		return entries[i], nil
	}
	return Entry{}, errs.Wrap(errs.NoSuchFile, "%q not found", name)
}

// Archive is a generic archiver.Archive over a sorted Entry table and
// the archive stream it was built from. The format-specific Open
// functions (grp.go, hog.go, wad.go) all construct one of these once
// their header has been parsed; pak.go only parses a table, which
// backend/hierarchical wraps in its own Archive.
type Archive struct {
	path      string
	stream    *os.File
	entries   []Entry
	nameLimit int
	modTime   time.Time
}

// New wraps an already-parsed, already-sorted entry table. stream is
// kept open for the lifetime of the Archive and closed by Destroy.
func New(path string, stream *os.File, entries []Entry, nameLimit int) (*Archive, error) {
	fi, err := stream.Stat()
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "stat archive %s: %v", path, err)
	}
	return &Archive{
		path:      path,
		stream:    stream,
		entries:   entries,
		nameLimit: nameLimit,
		modTime:   fi.ModTime(),
	}, nil
}

// Entries exposes the sorted table, e.g. for the hierarchical backend
// to build its directory tree on top of the same parse.
func (a *Archive) Entries() []Entry { return a.entries }

func (a *Archive) find(path string) (Entry, error) {
	return Lookup(a.entries, path, a.nameLimit)
}

func (a *Archive) Exists(path string) bool {
	_, err := a.find(path)
	return err == nil
}

// Stat reports the modification time of the archive file itself for
// every entry, since these formats don't store per-entry timestamps.
// Flat-index backends always answer is-directory = false, even for
// names containing '/' — they have no directory concept at all.
func (a *Archive) Stat(path string) (archiver.Stat, error) {
	e, err := a.find(path)
	if err != nil {
		return archiver.Stat{Found: false}, nil
	}
	return archiver.Stat{
		Found:   true,
		IsDir:   false,
		Size:    e.Size,
		ModTime: a.modTime,
	}, nil
}

// Enumerate lists every entry whose name matches dir exactly when
// dir=="" (root): flat-index archives have no directory concept, so
// root enumeration yields every entry and any non-root dir is empty.
func (a *Archive) Enumerate(dir string, emit archiver.EmitFunc, omitSymlinks bool) error {
	if dir != "" {
		return nil
	}
	for _, e := range a.entries {
		emit(e.Name)
	}
	return nil
}

func (a *Archive) OpenRead(path string) (archiver.File, error) {
	e, err := a.find(path)
	if err != nil {
		return nil, err
	}
	return &file{archive: a, entry: e}, nil
}

func (a *Archive) OpenWrite(string) (archiver.File, error) {
	return nil, errs.ReadOnlyArchive
}

func (a *Archive) OpenAppend(string) (archiver.File, error) {
	return nil, errs.ReadOnlyArchive
}

func (a *Archive) Remove(string) error { return errs.ReadOnlyArchive }
func (a *Archive) Mkdir(string) error  { return errs.ReadOnlyArchive }

func (a *Archive) Destroy() error {
	if err := a.stream.Close(); err != nil {
		return errs.Wrap(errs.IOError, "close archive %s: %v", a.path, err)
	}
	return nil
}

// file is the read-only archiver.File over one Entry, using ReadAt on
// the shared archive stream so that concurrently opened files on the
// same archive don't race on a shared seek position the way a plain
// seek-then-read pair would.
type file struct {
	archive *Archive
	entry   Entry
	curPos  int64
}

func (f *file) Read(p []byte) (int, error) {
	remaining := f.entry.Size - f.curPos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := f.archive.stream.ReadAt(p, f.entry.Start+f.curPos)
	f.curPos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (f *file) Write([]byte) (int, error) { return 0, errs.ReadOnlyArchive }

// Seek rejects a negative offset or one at-or-beyond entry.Size with
// errs.PastEOF — seeking exactly to the end of the file is past-eof,
// not a valid position, except on an empty entry where 0 is the only
// valid offset.
func (f *file) Seek(offset int64) error {
	if offset < 0 || offset > f.entry.Size || (offset == f.entry.Size && f.entry.Size > 0) {
		return errs.Wrap(errs.PastEOF, "seek %d past end of %q (size %d)", offset, f.entry.Name, f.entry.Size)
	}
	f.curPos = offset
	return nil
}

func (f *file) Tell() (int64, error)   { return f.curPos, nil }
func (f *file) Length() (int64, error) { return f.entry.Size, nil }
func (f *file) EOF() bool              { return f.curPos >= f.entry.Size }
func (f *file) Flush() error           { return nil }
func (f *file) Close() error           { return nil }

func (f *file) Duplicate() (archiver.File, error) {
	return &file{archive: f.archive, entry: f.entry}, nil
}

var (
	_ archiver.Archive = (*Archive)(nil)
	_ archiver.File    = (*file)(nil)
)
